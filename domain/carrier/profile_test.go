package carrier

import (
	"testing"

	"cdrlens/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownProfiles(t *testing.T) {
	for _, key := range Keys() {
		p, err := Lookup(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, p.Key)
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Required)
	}
}

func TestLookupUnknownProfile(t *testing.T) {
	_, err := Lookup(Key("vodafone-cdr"))
	assert.ErrorIs(t, err, core.ErrUnknownCarrier)
}

func TestProfileRolesAreRequiredOrOptional(t *testing.T) {
	p, err := Lookup(MTNCDR)
	require.NoError(t, err)
	// every required column must be reachable through a role or breakdown,
	// otherwise validation demands data nothing consumes
	roles := map[string]bool{
		p.Cols.Caller: true, p.Cols.Callee: true, p.Cols.Duration: true,
		p.Cols.Timestamp: true, p.Cols.Latitude: true, p.Cols.Longitude: true,
		p.Cols.Azimuth: true,
	}
	for _, col := range p.Required {
		assert.True(t, roles[col], "required column %q has no consumer", col)
	}
}

func TestCashProfilesCarryCurrency(t *testing.T) {
	for _, key := range []Key{MTNCash, TelecelCash, AirtelTigoCash} {
		p, err := Lookup(key)
		require.NoError(t, err)
		assert.Equal(t, ProductCash, p.Product)
		assert.NotEmpty(t, p.Currency, key)
	}
}
