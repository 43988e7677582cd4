package render

import (
	"testing"

	"cdrlens/domain/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPieValuesCarryPercentageLabels(t *testing.T) {
	values := pieValues([]analysis.RankEntry{
		{Key: analysis.PeriodMorning, Count: 3},
		{Key: analysis.PeriodEvening, Count: 1},
	})
	require.Len(t, values, 2)
	assert.Equal(t, "Morning 75.0%", values[0].Label)
	assert.Equal(t, 3.0, values[0].Value)
	assert.Equal(t, "Evening 25.0%", values[1].Label)
}

func TestPieValuesDropZeroSlices(t *testing.T) {
	values := pieValues([]analysis.RankEntry{
		{Key: "Completed", Count: 4},
		{Key: "Failed", Count: 0},
	})
	require.Len(t, values, 1)
	assert.Equal(t, "Completed 100.0%", values[0].Label)

	assert.Nil(t, pieValues(nil))
	assert.Nil(t, pieValues([]analysis.RankEntry{{Key: "x", Count: 0}}))
}
