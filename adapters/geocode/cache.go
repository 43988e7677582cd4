package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"cdrlens/internal/config"
	"cdrlens/internal/logx"

	"golang.org/x/sync/singleflight"
)

const (
	unknownLocation     = "Unknown Location"
	locationUnavailable = "Location Unavailable"
)

// Persister stores resolved addresses across runs. The SQL store satisfies
// this; a nil persister keeps the cache memory-only.
type Persister interface {
	SaveGeocode(ctx context.Context, lat, lon float64, address string) error
	LoadGeocodes(ctx context.Context) (map[string]string, error)
}

// Cache reverse-geocodes coordinates with an in-memory cache in front of the
// lookup service. Identical concurrent lookups are coalesced into one request.
// With geocoding disabled every lookup resolves to a placeholder, which keeps
// the rest of the pipeline oblivious to whether a geocoder is configured.
type Cache struct {
	cfg    config.GeocodeConfig
	client *http.Client
	store  Persister
	log    *logx.Logger

	mu      sync.RWMutex
	entries map[string]string
	group   singleflight.Group
}

func NewCache(cfg config.GeocodeConfig, store Persister, log *logx.Logger) *Cache {
	if log == nil {
		log = logx.NewDefaultLogger()
	}
	c := &Cache{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		store:   store,
		log:     log,
		entries: make(map[string]string),
	}
	c.warm()
	return c
}

// warm preloads persisted addresses so repeat analyses of the same towers
// never hit the network.
func (c *Cache) warm() {
	if c.store == nil {
		return
	}
	saved, err := c.store.LoadGeocodes(context.Background())
	if err != nil {
		c.log.Warn("geocode cache warm-up failed: %v", err)
		return
	}
	c.mu.Lock()
	for k, v := range saved {
		c.entries[k] = v
	}
	c.mu.Unlock()
	c.log.Debug("geocode cache warmed with %d entries", len(saved))
}

// Locate resolves coordinates to an address. Never fails: lookup errors
// degrade to a placeholder string.
func (c *Cache) Locate(lat, lon float64) string {
	if !c.cfg.Enabled {
		return unknownLocation
	}
	key := cacheKey(lat, lon)

	c.mu.RLock()
	addr, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return addr
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		addr := c.lookup(lat, lon)
		// Placeholders are cached in memory only, so a transient outage
		// does not poison the persistent cache.
		c.mu.Lock()
		c.entries[key] = addr
		c.mu.Unlock()
		if c.store != nil && addr != locationUnavailable {
			if err := c.store.SaveGeocode(context.Background(), lat, lon, addr); err != nil {
				c.log.Warn("persisting geocode %s failed: %v", key, err)
			}
		}
		return addr, nil
	})
	return v.(string)
}

func (c *Cache) lookup(lat, lon float64) string {
	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%s&lon=%s",
		c.cfg.BaseURL, url.QueryEscape(fmt.Sprintf("%f", lat)), url.QueryEscape(fmt.Sprintf("%f", lon)))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return locationUnavailable
	}
	req.Header.Set("User-Agent", "cdrlens/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("reverse geocode failed for %.5f,%.5f: %v", lat, lon, err)
		return locationUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("reverse geocode for %.5f,%.5f returned %d", lat, lon, resp.StatusCode)
		return locationUnavailable
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return locationUnavailable
	}
	if body.DisplayName == "" {
		return unknownLocation
	}
	return body.DisplayName
}

// Size reports the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}
