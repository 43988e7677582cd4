package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cdrlens/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string, enabled bool) config.GeocodeConfig {
	return config.GeocodeConfig{
		Enabled: enabled,
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}
}

func TestLocateDisabledReturnsPlaceholder(t *testing.T) {
	c := NewCache(testConfig("http://unused", false), nil, nil)
	assert.Equal(t, "Unknown Location", c.Locate(5.6, -0.18))
	assert.Equal(t, 0, c.Size(), "disabled lookups are not cached")
}

func TestLocateCachesResolvedAddresses(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"display_name": "Ring Road, Accra, Ghana"}`)
	}))
	defer srv.Close()

	c := NewCache(testConfig(srv.URL, true), nil, nil)
	assert.Equal(t, "Ring Road, Accra, Ghana", c.Locate(5.6, -0.18))
	assert.Equal(t, "Ring Road, Accra, Ghana", c.Locate(5.6, -0.18))
	assert.Equal(t, int64(1), calls.Load(), "repeat lookups hit the cache")

	c.Locate(5.7, -0.20)
	assert.Equal(t, int64(2), calls.Load(), "distinct coordinates trigger a new lookup")
}

func TestLocateDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCache(testConfig(srv.URL, true), nil, nil)
	assert.Equal(t, "Location Unavailable", c.Locate(5.6, -0.18))
}

func TestLocateEmptyDisplayNameIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"display_name": ""}`)
	}))
	defer srv.Close()

	c := NewCache(testConfig(srv.URL, true), nil, nil)
	assert.Equal(t, "Unknown Location", c.Locate(5.6, -0.18))
}

type memPersister struct {
	mu    sync.Mutex
	saved map[string]string
}

func newMemPersister() *memPersister {
	return &memPersister{saved: make(map[string]string)}
}

func (m *memPersister) SaveGeocode(_ context.Context, lat, lon float64, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[fmt.Sprintf("%.6f,%.6f", lat, lon)] = address
	return nil
}

func (m *memPersister) LoadGeocodes(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func TestCacheWarmsFromPersister(t *testing.T) {
	p := newMemPersister()
	require.NoError(t, p.SaveGeocode(context.Background(), 5.6, -0.18, "Osu, Accra"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("warm cache must not hit the network")
	}))
	defer srv.Close()

	c := NewCache(testConfig(srv.URL, true), p, nil)
	assert.Equal(t, "Osu, Accra", c.Locate(5.6, -0.18))
}

func TestResolvedAddressesArePersisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"display_name": "Tema, Ghana"}`)
	}))
	defer srv.Close()

	p := newMemPersister()
	c := NewCache(testConfig(srv.URL, true), p, nil)
	c.Locate(5.7, 0.0)

	saved, err := p.LoadGeocodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"5.700000,0.000000": "Tema, Ghana"}, saved)
}
