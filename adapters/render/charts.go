package render

import (
	"fmt"
	"os"
	"sort"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"

	"github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/stat"
)

const histogramBins = 20

func renderHourly(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if !agg.HasHours {
		return core.ErrEmptySeries
	}
	bars := make([]chart.Value, 24)
	for h := 0; h < 24; h++ {
		bars[h] = chart.Value{Label: fmt.Sprintf("%d", h), Value: float64(agg.Hours[h])}
	}
	title := "Transactions by Hour of Day"
	if p.Product == carrier.ProductCDR {
		title = "Calls by Hour of Day"
	}
	return writeBarChart(path, title, bars, 12)
}

func renderDaily(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if len(agg.Days) == 0 {
		return core.ErrEmptySeries
	}
	bars := make([]chart.Value, 0, len(agg.Days))
	for _, d := range agg.Days {
		bars = append(bars, chart.Value{Label: d.Key, Value: float64(d.Count)})
	}
	title := "Transactions by Day of Week"
	if p.Product == carrier.ProductCDR {
		title = "Calls by Day of Week"
	}
	return writeBarChart(path, title, bars, 60)
}

func renderPeriods(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	values := pieValues(agg.PeriodsRank)
	if len(values) == 0 {
		return core.ErrEmptySeries
	}
	return writePieChart(path, values)
}

func renderDurations(_ *carrier.Profile, agg *analysis.Aggregates, path string) error {
	return writeHistogram(path, "Call Duration Distribution (sec)", agg.Durations)
}

func renderAmounts(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	return writeHistogram(path, "Transaction Amount Distribution", agg.Amounts)
}

func renderTopCalled(_ *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if len(agg.TopCalled10) == 0 {
		return core.ErrEmptySeries
	}
	bars := make([]chart.Value, 0, len(agg.TopCalled10))
	for _, e := range agg.TopCalled10 {
		bars = append(bars, chart.Value{Label: e.Key, Value: float64(e.Count)})
	}
	return writeBarChart(path, "Top 10 Called Numbers", bars, 50)
}

func renderLocations(_ *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if len(agg.Geo) == 0 {
		return core.ErrEmptySeries
	}
	xs := make([]float64, len(agg.Geo))
	ys := make([]float64, len(agg.Geo))
	for i, pt := range agg.Geo {
		xs[i] = pt.Lon
		ys[i] = pt.Lat
	}
	graph := chart.Chart{
		Title:  "Call Locations",
		Width:  1024,
		Height: 768,
		XAxis:  chart.XAxis{Name: "Longitude"},
		YAxis:  chart.YAxis{Name: "Latitude"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    6,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return writeChart(path, func(f *os.File) error { return graph.Render(chart.PNG, f) })
}

func renderTypes(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	r := firstRanking(p, agg)
	if r == nil {
		return core.ErrEmptySeries
	}
	values := pieValues(r.Entries)
	if len(values) == 0 {
		return core.ErrEmptySeries
	}
	return writePieChart(path, values)
}

func renderParties(p *carrier.Profile, agg *analysis.Aggregates, path string) error {
	var best *analysis.Ranking
	// The party chart ranks counterparties (or senders for statement formats
	// without a single counterparty column).
	for _, col := range []string{p.Cols.Counterparty, p.Cols.Sender} {
		if col == "" {
			continue
		}
		for i := range agg.Rankings {
			if agg.Rankings[i].Column == col {
				best = &agg.Rankings[i]
				break
			}
		}
		if best != nil {
			break
		}
	}
	if best == nil || len(best.Entries) == 0 {
		return core.ErrEmptySeries
	}
	bars := make([]chart.Value, 0, len(best.Entries))
	for _, e := range best.Entries {
		bars = append(bars, chart.Value{Label: e.Key, Value: float64(e.Count)})
	}
	return writeBarChart(path, best.Title, bars, 60)
}

// pieValues labels every slice with its category and percentage share.
// Zero-count entries are dropped; go-chart cannot size an empty slice.
func pieValues(entries []analysis.RankEntry) []chart.Value {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	if total == 0 {
		return nil
	}
	values := make([]chart.Value, 0, len(entries))
	for _, e := range entries {
		if e.Count == 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", e.Key, 100*float64(e.Count)/float64(total)),
			Value: float64(e.Count),
		})
	}
	return values
}

func firstRanking(p *carrier.Profile, agg *analysis.Aggregates) *analysis.Ranking {
	if len(p.Breakdowns) == 0 {
		return nil
	}
	return agg.Ranking(p.Breakdowns[0].Title)
}

func writeBarChart(path, title string, bars []chart.Value, barWidth int) error {
	graph := chart.BarChart{
		Title:    title,
		Width:    1024,
		Height:   512,
		BarWidth: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: bars,
	}
	return writeChart(path, func(f *os.File) error { return graph.Render(chart.PNG, f) })
}

func writePieChart(path string, values []chart.Value) error {
	graph := chart.PieChart{
		Width:  600,
		Height: 600,
		Values: values,
	}
	return writeChart(path, func(f *os.File) error { return graph.Render(chart.PNG, f) })
}

// writeHistogram bins the values with gonum and renders the counts as bars.
func writeHistogram(path, title string, values []float64) error {
	if len(values) == 0 {
		return core.ErrEmptySeries
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		hi = lo + 1
	}
	span := hi - lo
	dividers := make([]float64, histogramBins+1)
	for i := range dividers {
		dividers[i] = lo + span*float64(i)/histogramBins
	}
	// stat.Histogram requires every value strictly below the last divider.
	dividers[histogramBins] = hi + span*1e-9 + 1e-12

	counts := stat.Histogram(nil, dividers, sorted, nil)
	bars := make([]chart.Value, histogramBins)
	for i := range counts {
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%.0f", dividers[i]),
			Value: counts[i],
		}
	}
	return writeBarChart(path, title, bars, 30)
}

func writeChart(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
