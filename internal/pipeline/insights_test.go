package pipeline

import (
	"context"
	"testing"

	"cdrlens/domain/carrier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeCDRInsightOrder(t *testing.T) {
	p := mustProfile(t, carrier.MTNCDR)
	d := cdrDataset(
		"2024-01-01 10:00:00",
		"2024-01-01 10:30:00",
		"2024-01-01 22:00:00",
	)
	require.NoError(t, Validate(d, p))

	_, agg := NewEngine(p, fixedLocator("Accra, Ghana"), nil).Run(context.Background(), d, nil)
	insights := Synthesize(p, agg)
	require.NotEmpty(t, insights)

	assert.Contains(t, insights[0], "Peak calling hour: 10:00 with 2 calls")
	assert.Contains(t, insights, "Most contacted number: 0242222222 with 3 calls")
	assert.Contains(t, insights, "Average call duration: 60.00 seconds")

	// last call line precedes the period location lines
	var lastIdx, periodIdx int
	for i, line := range insights {
		if len(line) > 9 && line[:9] == "Last call" {
			lastIdx = i
		}
		if len(line) > 13 && line[:13] == "Most frequent" {
			periodIdx = i
			break
		}
	}
	assert.Less(t, lastIdx, periodIdx)
}

func TestSynthesizeOmitsSkippedSources(t *testing.T) {
	p := mustProfile(t, carrier.MTNCDR)
	cols := []string{"calling_no", "called_no", "duration", "event_date_time", "latitude", "longitude", "azimuth"}
	d := buildDataset(cols,
		[]string{"a", "b", "30", "unparseable", "0", "0", "0"},
	)
	require.NoError(t, Validate(d, p))

	_, agg := NewEngine(p, nil, nil).Run(context.Background(), d, nil)
	insights := Synthesize(p, agg)

	for _, line := range insights {
		assert.NotContains(t, line, "Peak calling hour", "no time data, no peak hour line")
		assert.NotContains(t, line, "Most frequent", "no geo data, no period location lines")
	}
	assert.Contains(t, insights, "Most contacted number: b with 1 calls")
}

func TestSynthesizeCashInsights(t *testing.T) {
	p := mustProfile(t, carrier.TelecelCash)
	d := buildDataset(
		[]string{"Paid In", "Withdrawn", "Balance", "Opposite Party", "Completion Time", "Transaction Status"},
		[]string{"100", "0", "100", "0551111111", "2024-03-04 09:15:00", "Completed"},
		[]string{"0", "40", "60", "0551111111", "2024-03-05 14:20:00", "Completed"},
	)
	require.NoError(t, Validate(d, p))

	_, agg := NewEngine(p, nil, nil).Run(context.Background(), d, nil)
	insights := Synthesize(p, agg)

	assert.Contains(t, insights, "Most frequent counterparty: 0551111111 with 2 transactions")
	assert.Contains(t, insights, "Average transaction amount: GH₵ 35.00")
	assert.Contains(t, insights, "Most active day: Monday with 1 transactions")
}
