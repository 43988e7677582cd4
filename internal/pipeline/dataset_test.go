package pipeline

import (
	"testing"

	"cdrlens/domain/carrier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDataset(columns []string, rows ...[]string) *Dataset {
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		cells := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				cells[col] = row[i]
			}
		}
		data = append(data, cells)
	}
	return NewDataset(columns, data)
}

func TestNormalizeFoldsCaseAndResolvesAliases(t *testing.T) {
	p, err := carrier.Lookup(carrier.MTNCDR)
	require.NoError(t, err)

	d := buildDataset(
		[]string{"Calling  Number", "Called Number", "DURATION", "Event Date", "Latitude", "Longitude", "Azimuth"},
		[]string{"0241111111", "0242222222", "30", "2024-01-01 10:00:00", "5.6", "-0.18", "90"},
	)
	d.Normalize(p)

	assert.True(t, d.Has("calling_no"), "alias should resolve despite extra whitespace")
	assert.True(t, d.Has("called_no"))
	assert.True(t, d.Has("duration"))
	assert.True(t, d.Has("event_date_time"))
	assert.Equal(t, "0241111111", d.Rows[0]["calling_no"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	p, err := carrier.Lookup(carrier.MTNCDR)
	require.NoError(t, err)

	d := buildDataset(
		[]string{"Calling Number", "Duration"},
		[]string{"0241111111", "30"},
	)
	d.Normalize(p)
	first := append([]string{}, d.Columns...)
	d.Normalize(p)
	assert.Equal(t, first, d.Columns)
}

func TestNormalizePreservesCaseSensitiveProfiles(t *testing.T) {
	p, err := carrier.Lookup(carrier.TelecelCash)
	require.NoError(t, err)

	d := buildDataset(
		[]string{"Paid In", "Withdrawn", "Balance", "Opposite Party"},
		[]string{"100", "0", "100", "0551234567"},
	)
	d.Normalize(p)

	assert.True(t, d.Has("Paid In"))
	assert.False(t, d.Has("paid_in"))
}

func TestNumericCoercionZeroFillsBadCells(t *testing.T) {
	d := buildDataset(
		[]string{"duration"},
		[]string{"30"},
		[]string{"not-a-number"},
		[]string{""},
		[]string{" 12.5 "},
	)

	vals := d.Numeric("duration")
	require.Len(t, vals, 4)
	assert.Equal(t, []float64{30, 0, 0, 12.5}, vals)

	// cached and stable across repeated access
	assert.Equal(t, vals, d.Numeric("duration"))
}

func TestNumericReturnsNilForAbsentColumn(t *testing.T) {
	d := buildDataset([]string{"duration"}, []string{"30"})
	assert.Nil(t, d.Numeric("missing"))
}
