package pipeline

import (
	"fmt"
	"strings"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
)

// Synthesize derives the human-readable insight lines from the aggregates.
// Lines appear in a fixed order; any line whose source aggregate was skipped
// is omitted rather than emitted empty.
func Synthesize(p *carrier.Profile, agg *analysis.Aggregates) []string {
	var out []string

	noun := "transactions"
	if p.Product == carrier.ProductCDR {
		noun = "calls"
	}

	if agg.HasHours {
		verb := "transaction"
		if p.Product == carrier.ProductCDR {
			verb = "calling"
		}
		out = append(out, fmt.Sprintf("Peak %s hour: %d:00 with %d %s",
			verb, agg.PeakHour, agg.PeakHourHits, noun))
	}

	for _, b := range p.Breakdowns {
		if b.Insight == "" {
			continue
		}
		r := agg.Ranking(b.Title)
		if r == nil || len(r.Entries) == 0 {
			continue
		}
		out = append(out, fmt.Sprintf(b.Insight, r.Entries[0].Key, r.Entries[0].Count))
	}

	switch p.Product {
	case carrier.ProductCDR:
		if len(agg.Durations) > 0 {
			out = append(out, fmt.Sprintf("Average call duration: %.2f seconds", agg.AvgDuration))
		}
	default:
		if agg.AvgAmount != nil {
			out = append(out, fmt.Sprintf("Average transaction amount: %s%.2f",
				p.Currency, *agg.AvgAmount))
		}
		if len(agg.Days) > 0 {
			out = append(out, fmt.Sprintf("Most active day: %s with %d transactions",
				agg.Days[0].Key, agg.Days[0].Count))
		}
	}

	if agg.Last != nil {
		out = append(out, fmt.Sprintf("Last call was to %s at %s from location %s",
			agg.Last.Callee, agg.Last.Time, agg.Last.Address))
	}

	for _, loc := range agg.PeriodLocs {
		out = append(out, fmt.Sprintf("Most frequent %s location: %s with %d %s",
			strings.ToLower(loc.Period), loc.Address, loc.Point.Count, noun))
	}

	return out
}
