package pipeline

import (
	"testing"

	"cdrlens/domain/carrier"
	"cdrlens/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsCompleteExport(t *testing.T) {
	p, err := carrier.Lookup(carrier.TelecelCash)
	require.NoError(t, err)

	d := buildDataset(
		[]string{"Paid In", "Withdrawn", "Balance", "Opposite Party"},
		[]string{"100", "0", "100", "0551234567"},
	)
	require.NoError(t, Validate(d, p))

	// numeric columns are coerced as a side effect
	assert.Equal(t, []float64{100}, d.Numeric("Paid In"))
}

func TestValidateReportsEveryMissingColumn(t *testing.T) {
	p, err := carrier.Lookup(carrier.TelecelCash)
	require.NoError(t, err)

	d := buildDataset(
		[]string{"Paid In", "Something Else"},
		[]string{"100", "x"},
	)
	err = Validate(d, p)
	require.Error(t, err)
	assert.True(t, core.IsSchemaError(err))

	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.ElementsMatch(t, []string{"Withdrawn", "Balance", "Opposite Party"}, schemaErr.Missing)
}

func TestValidateRejectsEmptyDataset(t *testing.T) {
	p, err := carrier.Lookup(carrier.MTNCDR)
	require.NoError(t, err)

	assert.ErrorIs(t, Validate(nil, p), core.ErrNoData)
	assert.ErrorIs(t, Validate(buildDataset([]string{"calling_no"}), p), core.ErrNoData)
}
