package analysis

// Pair is one (label, value) row of an analysis report. Ordering is
// significant: it mirrors presentation order.
type Pair struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Result is the ordered sequence of report pairs produced by one run.
// Labels are unique within a run except for block headers ("Top 5 Contacts")
// that introduce a ranked sub-list.
type Result struct {
	Pairs []Pair `json:"pairs"`
}

func (r *Result) Add(label, value string) {
	r.Pairs = append(r.Pairs, Pair{Label: label, Value: value})
}

func (r *Result) Len() int {
	return len(r.Pairs)
}

// Lookup returns the value of the first pair with the given label.
func (r *Result) Lookup(label string) (string, bool) {
	for _, p := range r.Pairs {
		if p.Label == label {
			return p.Value, true
		}
	}
	return "", false
}

// RankEntry is one row of a categorical frequency ranking.
type RankEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Ranking is a materialized top-N breakdown.
type Ranking struct {
	Title   string      `json:"title"`
	Column  string      `json:"column"`
	Entries []RankEntry `json:"entries"`
}

// GeoPoint is one distinct (latitude, longitude) group with its event count
// and, for CDR data, the tower azimuth in degrees.
type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Azimuth float64 `json:"azimuth"`
	Count   int     `json:"count"`
}

// PeriodLocation is the most frequent location within one time period.
type PeriodLocation struct {
	Period  string   `json:"period"`
	Point   GeoPoint `json:"point"`
	Address string   `json:"address"`
}

// NetworkNode is one participant in the call network.
type NetworkNode struct {
	Number string `json:"number"`
	// Group 1 = calling numbers, group 2 = called numbers.
	Group int `json:"group"`
}

// NetworkEdge is a caller/callee pair weighted by call count.
type NetworkEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// Network is the bipartite-like call graph restricted to the calls of the
// top-20 most frequent called numbers.
type Network struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

// LastEvent captures the final row of a CDR export.
type LastEvent struct {
	Time     string `json:"time"`
	Location string `json:"location"`
	Address  string `json:"address"`
	Caller   string `json:"caller"`
	Callee   string `json:"callee"`
	Duration string `json:"duration"`
	Type     string `json:"type"`
}

// Aggregates holds the typed intermediates each step materializes. Insight
// synthesis and visualization rendering read these; they never recompute.
type Aggregates struct {
	RowCount int

	// CDR totals
	UniqueCallers int
	TotalDuration float64
	AvgDuration   float64
	Durations     []float64

	// Cash totals
	TotalDeposits    float64
	TotalWithdrawals float64
	NetCashFlow      float64
	AvgDeposit       *float64 // nil when no positive deposits exist
	AvgWithdrawal    *float64
	AvgAmount        *float64
	Amounts          []float64

	Rankings    []Ranking
	TopCalled10 []RankEntry

	Hours        [24]int
	HasHours     bool
	Days         []RankEntry
	Periods      map[string]int
	PeriodsRank  []RankEntry
	PeakHour     int
	PeakHourHits int

	Geo            []GeoPoint
	Hottest        *GeoPoint
	PeriodLocs     []PeriodLocation
	Net            *Network
	Last           *LastEvent
	SkippedSteps   []string
	rankingByTitle map[string]*Ranking
}

// Ranking returns the materialized breakdown with the given title.
func (a *Aggregates) Ranking(title string) *Ranking {
	if a.rankingByTitle == nil {
		a.rankingByTitle = make(map[string]*Ranking, len(a.Rankings))
		for i := range a.Rankings {
			a.rankingByTitle[a.Rankings[i].Title] = &a.Rankings[i]
		}
	}
	return a.rankingByTitle[title]
}

// AddRanking appends a materialized breakdown.
func (a *Aggregates) AddRanking(r Ranking) {
	a.Rankings = append(a.Rankings, r)
	a.rankingByTitle = nil
}

// RunState models the orchestrator lifecycle. Terminal states are final.
type RunState string

const (
	StateCreated   RunState = "created"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// Terminal reports whether the state is Completed or Failed.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Time period labels derived from hour-of-day.
const (
	PeriodNight     = "Night"
	PeriodMorning   = "Morning"
	PeriodAfternoon = "Afternoon"
	PeriodEvening   = "Evening"
)

// PeriodOf buckets an hour of day into its period using half-open intervals:
// Night [0,6), Morning [6,12), Afternoon [12,18), Evening [18,24).
func PeriodOf(hour int) string {
	switch {
	case hour < 6:
		return PeriodNight
	case hour < 12:
		return PeriodMorning
	case hour < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// Periods in presentation order.
func PeriodNames() []string {
	return []string{PeriodNight, PeriodMorning, PeriodAfternoon, PeriodEvening}
}
