package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/logx"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/graph/simple"
)

// Locator resolves coordinates to a human-readable address. Implementations
// must be cheap on repeated coordinates (the geocode cache satisfies this).
type Locator interface {
	Locate(lat, lon float64) string
}

// noopLocator is used when no geocoder is configured.
type noopLocator struct{}

func (noopLocator) Locate(lat, lon float64) string { return "Unknown Location" }

const networkTopCallees = 20

type engineStep struct {
	name  string
	label string
	fn    func(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error
}

// Engine executes the fixed battery of aggregation steps for one carrier
// profile. A step whose source column is absent is skipped with an internal
// log entry; it never aborts the run. An Engine instance serves exactly one
// run: later steps reuse derived columns (hour, period) computed by earlier
// ones.
type Engine struct {
	profile *carrier.Profile
	locator Locator
	log     *logx.Logger
	steps   []engineStep

	// derived per-row columns shared between steps
	periods []string
}

// NewEngine builds the step battery for a profile. locator may be nil.
func NewEngine(p *carrier.Profile, locator Locator, log *logx.Logger) *Engine {
	if locator == nil {
		locator = noopLocator{}
	}
	if log == nil {
		log = logx.NewDefaultLogger()
	}
	e := &Engine{profile: p, locator: locator, log: log}

	switch p.Product {
	case carrier.ProductCDR:
		e.steps = []engineStep{
			{"totals", "Analyzing call patterns...", e.stepCDRTotals},
			{"breakdowns", "Analyzing contact frequencies...", e.stepBreakdowns},
			{"time_buckets", "Analyzing temporal patterns...", e.stepTimeBuckets},
			{"geo", "Analyzing geolocations...", e.stepGeo},
			{"network", "Building call network...", e.stepNetwork},
			{"last_event", "Collecting last call details...", e.stepLastEvent},
		}
	default:
		e.steps = []engineStep{
			{"totals", "Analyzing transaction patterns...", e.stepCashTotals},
			{"breakdowns", "Analyzing transaction parties...", e.stepBreakdowns},
			{"time_buckets", "Generating time-based analysis...", e.stepTimeBuckets},
		}
	}
	return e
}

// StepLabels returns the progress messages in execution order.
func (e *Engine) StepLabels() []string {
	labels := make([]string, len(e.steps))
	for i, s := range e.steps {
		labels[i] = s.label
	}
	return labels
}

// Run executes every step in order. onStep, when non-nil, is invoked after
// each step completes or is skipped. Run never fails at the run level; step
// errors are recovered locally and recorded in Aggregates.SkippedSteps.
func (e *Engine) Run(ctx context.Context, d *Dataset, onStep func(label string)) (*analysis.Result, *analysis.Aggregates) {
	res := &analysis.Result{}
	agg := &analysis.Aggregates{RowCount: d.Len(), Periods: make(map[string]int)}

	for _, step := range e.steps {
		if ctx.Err() != nil {
			return res, agg
		}
		if err := e.runStep(step, d, res, agg); err != nil {
			e.log.Warn("aggregation step %s skipped: %v", step.name, err)
			agg.SkippedSteps = append(agg.SkippedSteps, step.name)
		}
		if onStep != nil {
			onStep(step.label)
		}
	}
	return res, agg
}

// runStep isolates a single step: a panic inside one computation downgrades
// to a skipped step rather than a failed run.
func (e *Engine) runStep(step engineStep, d *Dataset, res *analysis.Result, agg *analysis.Aggregates) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewStepError(step.name, fmt.Errorf("panic: %v", r))
		}
	}()
	return step.fn(d, res, agg)
}

func (e *Engine) stepCDRTotals(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	cols := e.profile.Cols
	if !d.Has(cols.Caller) || !d.Has(cols.Duration) {
		return core.NewStepError("totals", core.ErrColumnAbsent)
	}

	durations := d.Numeric(cols.Duration)
	// SMS rows carry no talk time; exclude them from duration stats when the
	// export distinguishes call types.
	if d.Has(cols.CallType) {
		kinds := d.Strings(cols.CallType)
		filtered := make([]float64, 0, len(durations))
		for i, v := range durations {
			if kinds[i] != "SMS" {
				filtered = append(filtered, v)
			}
		}
		durations = filtered
	}

	agg.UniqueCallers = distinctCount(d.Strings(cols.Caller))
	agg.Durations = durations
	if total, err := stats.Sum(durations); err == nil {
		agg.TotalDuration = total
	}
	if mean, err := stats.Mean(durations); err == nil {
		agg.AvgDuration = mean
	}

	res.Add("Total Calls", fmt.Sprintf("%d", d.Len()))
	res.Add("Unique Callers", fmt.Sprintf("%d", agg.UniqueCallers))
	res.Add("Total Call Duration (sec)", fmt.Sprintf("%.0f", agg.TotalDuration))
	if len(durations) == 0 {
		res.Add("Average Call Duration (sec)", "N/A")
	} else {
		res.Add("Average Call Duration (sec)", fmt.Sprintf("%.2f", agg.AvgDuration))
	}
	return nil
}

func (e *Engine) stepCashTotals(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	cols := e.profile.Cols
	cur := e.profile.Currency

	res.Add("Total Transactions", fmt.Sprintf("%d", d.Len()))

	if cols.PaidIn != "" && d.Has(cols.PaidIn) && d.Has(cols.Withdrawn) {
		deposits := d.Numeric(cols.PaidIn)
		withdrawals := d.Numeric(cols.Withdrawn)

		agg.TotalDeposits = sum(deposits)
		agg.TotalWithdrawals = sum(withdrawals)
		agg.NetCashFlow = agg.TotalDeposits - agg.TotalWithdrawals
		agg.AvgDeposit = meanPositive(deposits)
		agg.AvgWithdrawal = meanPositive(withdrawals)
		agg.Amounts = append(append([]float64{}, deposits...), withdrawals...)
		if mean, err := stats.Mean(agg.Amounts); err == nil {
			agg.AvgAmount = &mean
		}

		res.Add("Total Deposits", fmt.Sprintf("%s%.2f", cur, agg.TotalDeposits))
		res.Add("Total Withdrawals", fmt.Sprintf("%s%.2f", cur, agg.TotalWithdrawals))
		res.Add("Net Cash Flow", fmt.Sprintf("%s%.2f", cur, agg.NetCashFlow))
		res.Add("Average Deposit Amount", formatOptionalAmount(cur, agg.AvgDeposit))
		res.Add("Average Withdrawal Amount", formatOptionalAmount(cur, agg.AvgWithdrawal))
		return nil
	}

	if cols.TxType != "" && d.Has(cols.TxType) && d.Has(cols.Amount) {
		kinds := d.Strings(cols.TxType)
		amounts := d.Numeric(cols.Amount)

		var income, expenses float64
		for i, kind := range kinds {
			switch kind {
			case "CREDIT":
				income += amounts[i]
			case "DEBIT":
				expenses += amounts[i]
			}
		}
		agg.TotalDeposits = income
		agg.TotalWithdrawals = expenses
		agg.NetCashFlow = income - expenses
		agg.Amounts = amounts
		if mean, err := stats.Mean(amounts); err == nil {
			agg.AvgAmount = &mean
		}

		res.Add("Total Income", fmt.Sprintf("%s%.2f", cur, income))
		res.Add("Total Expenses", fmt.Sprintf("%s%.2f", cur, expenses))
		res.Add("Net Balance", fmt.Sprintf("%s%.2f", cur, agg.NetCashFlow))
		res.Add("Average Transaction Amount", formatOptionalAmount(cur, agg.AvgAmount))
		return nil
	}

	return core.NewStepError("totals", core.ErrColumnAbsent)
}

func (e *Engine) stepBreakdowns(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	countHeader := "Count"
	if e.profile.Product == carrier.ProductCDR {
		countHeader = "Frequency"
	}

	ran := 0
	for _, b := range e.profile.Breakdowns {
		if !d.Has(b.Column) {
			e.log.Debug("breakdown %q skipped: column %q absent", b.Title, b.Column)
			continue
		}
		entries := topN(d.Strings(b.Column), b.N)
		if len(entries) == 0 {
			continue
		}
		res.Add(b.Title, countHeader)
		for _, entry := range entries {
			res.Add(entry.Key, fmt.Sprintf("%d", entry.Count))
		}
		agg.AddRanking(analysis.Ranking{Title: b.Title, Column: b.Column, Entries: entries})
		ran++
	}

	// The statistical chart ranks the ten most-called numbers.
	if cols := e.profile.Cols; e.profile.Product == carrier.ProductCDR && d.Has(cols.Callee) {
		agg.TopCalled10 = topN(d.Strings(cols.Callee), 10)
	}

	if ran == 0 {
		return core.NewStepError("breakdowns", core.ErrColumnAbsent)
	}
	return nil
}

func (e *Engine) stepTimeBuckets(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	col := e.profile.Cols.Timestamp
	if !d.Has(col) {
		return core.NewStepError("time_buckets", core.ErrColumnAbsent)
	}

	raw := d.Strings(col)
	e.periods = make([]string, len(raw))
	dayCounter := newCounter()
	parsed := 0

	for i, cell := range raw {
		ts, ok := parseTimestamp(cell)
		if !ok {
			continue
		}
		parsed++
		hour := ts.Hour()
		agg.Hours[hour]++
		period := analysis.PeriodOf(hour)
		e.periods[i] = period
		agg.Periods[period]++
		dayCounter.add(ts.Weekday().String())
	}
	if parsed == 0 {
		e.periods = nil
		return core.NewStepError("time_buckets", core.ErrEmptySeries)
	}

	agg.HasHours = true
	agg.Days = dayCounter.ranked(0)
	agg.PeriodsRank = rankPeriods(agg.Periods)
	agg.PeakHour, agg.PeakHourHits = peakHour(agg.Hours)

	if len(agg.PeriodsRank) > 0 {
		res.Add("Most Active Period", agg.PeriodsRank[0].Key)
	}
	if len(agg.Days) > 0 {
		res.Add("Most Active Day", agg.Days[0].Key)
	}
	return nil
}

func (e *Engine) stepGeo(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	cols := e.profile.Cols
	if !d.Has(cols.Latitude) || !d.Has(cols.Longitude) {
		return core.NewStepError("geo", core.ErrColumnAbsent)
	}

	lats := d.Numeric(cols.Latitude)
	lons := d.Numeric(cols.Longitude)
	var azimuths []float64
	if d.Has(cols.Azimuth) {
		azimuths = d.Numeric(cols.Azimuth)
	}

	type geoKey struct{ lat, lon float64 }
	counts := make(map[geoKey]*analysis.GeoPoint)
	var order []geoKey
	for i := range lats {
		if lats[i] == 0 && lons[i] == 0 {
			continue
		}
		key := geoKey{lats[i], lons[i]}
		pt, ok := counts[key]
		if !ok {
			pt = &analysis.GeoPoint{Lat: lats[i], Lon: lons[i]}
			if azimuths != nil {
				pt.Azimuth = azimuths[i]
			}
			counts[key] = pt
			order = append(order, key)
		}
		pt.Count++
	}
	if len(order) == 0 {
		return core.NewStepError("geo", core.ErrEmptySeries)
	}

	for _, key := range order {
		agg.Geo = append(agg.Geo, *counts[key])
	}
	hottest := agg.Geo[0]
	for _, pt := range agg.Geo[1:] {
		if pt.Count > hottest.Count {
			hottest = pt
		}
	}
	agg.Hottest = &hottest

	res.Add("Geolocation Frequency Analysis", "Records")
	top := make([]analysis.GeoPoint, len(agg.Geo))
	copy(top, agg.Geo)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	for i, pt := range top {
		if i == 5 {
			break
		}
		res.Add(fmt.Sprintf("Lat: %.6f, Lon: %.6f", pt.Lat, pt.Lon), fmt.Sprintf("%d", pt.Count))
	}

	// Most frequent location per time period, when the time step produced
	// the derived period column.
	if e.periods != nil {
		for _, period := range analysis.PeriodNames() {
			best := bestLocationFor(period, e.periods, lats, lons, azimuths)
			if best == nil {
				continue
			}
			agg.PeriodLocs = append(agg.PeriodLocs, analysis.PeriodLocation{
				Period:  period,
				Point:   *best,
				Address: e.locator.Locate(best.Lat, best.Lon),
			})
		}
		if len(agg.PeriodLocs) > 0 {
			res.Add("Most Frequent Locations by Time Period", "")
			for _, loc := range agg.PeriodLocs {
				res.Add(fmt.Sprintf("%s Location", loc.Period),
					fmt.Sprintf("Lat: %.5f, Lon: %.5f", loc.Point.Lat, loc.Point.Lon))
				res.Add(fmt.Sprintf("%s Calls", loc.Period), fmt.Sprintf("%d", loc.Point.Count))
				res.Add(fmt.Sprintf("%s Address", loc.Period), loc.Address)
			}
		}
	}
	return nil
}

func (e *Engine) stepNetwork(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	cols := e.profile.Cols
	if !d.Has(cols.Caller) || !d.Has(cols.Callee) {
		return core.NewStepError("network", core.ErrColumnAbsent)
	}

	callers := d.Strings(cols.Caller)
	callees := d.Strings(cols.Callee)

	top := topN(callees, networkTopCallees)
	if len(top) == 0 {
		return core.NewStepError("network", core.ErrEmptySeries)
	}
	keep := make(map[string]bool, len(top))
	for _, entry := range top {
		keep[entry.Key] = true
	}

	net := &analysis.Network{}
	g := simple.NewWeightedUndirectedGraph(0, 0)
	ids := make(map[string]int64)
	groups := make(map[string]int)
	var nodeOrder []string

	node := func(number string, group int) int64 {
		if id, ok := ids[number]; ok {
			// called-number grouping wins for overlapping participants
			if group == 2 {
				groups[number] = 2
			}
			return id
		}
		n := g.NewNode()
		g.AddNode(n)
		ids[number] = n.ID()
		groups[number] = group
		nodeOrder = append(nodeOrder, number)
		return n.ID()
	}

	type pair struct{ from, to string }
	weights := make(map[pair]int)
	var edgeOrder []pair
	for i := range callees {
		callee := callees[i]
		caller := callers[i]
		if callee == "" || caller == "" || !keep[callee] {
			continue
		}
		node(caller, 1)
		node(callee, 2)
		key := pair{caller, callee}
		if weights[key] == 0 {
			edgeOrder = append(edgeOrder, key)
		}
		weights[key]++
	}

	for _, key := range edgeOrder {
		from, to := ids[key.from], ids[key.to]
		if from == to {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(g.Node(from), g.Node(to), float64(weights[key])))
	}

	for _, number := range nodeOrder {
		net.Nodes = append(net.Nodes, analysis.NetworkNode{Number: number, Group: groups[number]})
	}
	for _, key := range edgeOrder {
		if ids[key.from] == ids[key.to] {
			continue
		}
		w, ok := g.Weight(ids[key.from], ids[key.to])
		if !ok {
			continue
		}
		net.Edges = append(net.Edges, analysis.NetworkEdge{From: key.from, To: key.to, Weight: int(w)})
	}

	agg.Net = net
	return nil
}

func (e *Engine) stepLastEvent(d *Dataset, res *analysis.Result, agg *analysis.Aggregates) error {
	cols := e.profile.Cols
	if d.Len() == 0 || !d.Has(cols.Caller) || !d.Has(cols.Callee) {
		return core.NewStepError("last_event", core.ErrColumnAbsent)
	}

	last := d.Rows[d.Len()-1]
	lat := coerceFloat(last[cols.Latitude])
	lon := coerceFloat(last[cols.Longitude])
	kind := last[cols.CallType]
	if kind == "" {
		kind = "VOICE"
	}

	ev := &analysis.LastEvent{
		Time:     last[cols.Timestamp],
		Location: fmt.Sprintf("Lat: %.5f, Lon: %.5f", lat, lon),
		Address:  e.locator.Locate(lat, lon),
		Caller:   last[cols.Caller],
		Callee:   last[cols.Callee],
		Duration: fmt.Sprintf("%.1f sec", coerceFloat(last[cols.Duration])),
		Type:     kind,
	}
	agg.Last = ev

	res.Add("Last Call Information", "")
	res.Add("Time", ev.Time)
	res.Add("Location", ev.Location)
	res.Add("Address", ev.Address)
	res.Add("Calling Number", ev.Caller)
	res.Add("Called Number", ev.Callee)
	res.Add("Duration", ev.Duration)
	res.Add("Type", ev.Type)
	return nil
}

// ---- helpers ----

// counter preserves first-encountered order for tie-breaking.
type counter struct {
	counts map[string]int
	first  map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), first: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.first[key] = len(c.order)
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// ranked returns entries sorted descending by count; ties break by
// first-encountered order. n == 0 returns the full ranking.
func (c *counter) ranked(n int) []analysis.RankEntry {
	entries := make([]analysis.RankEntry, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, analysis.RankEntry{Key: key, Count: c.counts[key]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return c.first[entries[i].Key] < c.first[entries[j].Key]
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// topN computes a categorical frequency ranking. Empty cells are ignored.
func topN(values []string, n int) []analysis.RankEntry {
	c := newCounter()
	for _, v := range values {
		if v == "" {
			continue
		}
		c.add(v)
	}
	return c.ranked(n)
}

func rankPeriods(counts map[string]int) []analysis.RankEntry {
	c := newCounter()
	for _, period := range analysis.PeriodNames() {
		for i := 0; i < counts[period]; i++ {
			c.add(period)
		}
	}
	return c.ranked(0)
}

func peakHour(hours [24]int) (int, int) {
	best, hits := 0, hours[0]
	for h := 1; h < 24; h++ {
		if hours[h] > hits {
			best, hits = h, hours[h]
		}
	}
	return best, hits
}

func bestLocationFor(period string, periods []string, lats, lons, azimuths []float64) *analysis.GeoPoint {
	type geoKey struct{ lat, lon float64 }
	counts := make(map[geoKey]*analysis.GeoPoint)
	var best *analysis.GeoPoint
	for i, p := range periods {
		if p != period || (lats[i] == 0 && lons[i] == 0) {
			continue
		}
		key := geoKey{lats[i], lons[i]}
		pt, ok := counts[key]
		if !ok {
			pt = &analysis.GeoPoint{Lat: lats[i], Lon: lons[i]}
			if azimuths != nil {
				pt.Azimuth = azimuths[i]
			}
			counts[key] = pt
		}
		pt.Count++
		if best == nil || pt.Count > best.Count {
			best = pt
		}
	}
	return best
}

func distinctCount(values []string) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			seen[v] = true
		}
	}
	return len(seen)
}

func sum(values []float64) float64 {
	total, err := stats.Sum(values)
	if err != nil {
		return 0
	}
	return total
}

// meanPositive returns the mean of the strictly positive values, or nil when
// none exist (rendered as "N/A", never a division fault).
func meanPositive(values []float64) *float64 {
	var positive []float64
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	mean, err := stats.Mean(positive)
	if err != nil {
		return nil
	}
	return &mean
}

func formatOptionalAmount(currency string, v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s%.2f", currency, *v)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"2006/01/02 15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
