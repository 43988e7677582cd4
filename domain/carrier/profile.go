package carrier

import "cdrlens/domain/core"

// Key identifies one carrier/product combination.
type Key string

const (
	MTNCDR         Key = "mtn-cdr"
	TelecelCDR     Key = "telecel-cdr"
	AirtelTigoCDR  Key = "airteltigo-cdr"
	MTNCash        Key = "mtn-cash"
	TelecelCash    Key = "telecel-cash"
	AirtelTigoCash Key = "airteltigo-cash"
)

// Product distinguishes call-detail-record exports from mobile-money exports.
type Product string

const (
	ProductCDR  Product = "cdr"
	ProductCash Product = "cash"
)

// Columns maps the roles the aggregation engine understands onto the
// canonical (post-normalization) column names of one carrier export. An empty
// name means the carrier does not supply that role; the corresponding steps
// are skipped.
type Columns struct {
	Caller    string
	Callee    string
	Incoming  string
	Duration  string
	IMEI      string
	CallType  string
	Timestamp string
	Latitude  string
	Longitude string
	Azimuth   string

	PaidIn       string
	Withdrawn    string
	Balance      string
	Counterparty string
	Status       string
	TxType       string
	Amount       string
	Sender       string
	Receiver     string
}

// Breakdown describes one categorical frequency ranking.
type Breakdown struct {
	Column string
	Title  string // sub-list header introducing the ranked block
	N      int    // 0 means all categories
	// Insight is a format string taking the top entry's key and count.
	// Empty means the breakdown contributes no insight line.
	Insight string
}

// Profile is the static descriptor for one carrier/product pair: required
// column names, aliases, numeric columns needing coercion, and the
// aggregation roles. Profiles are immutable; selected once per run.
type Profile struct {
	Key      Key
	Name     string
	Product  Product
	Required []string
	// Aliases maps normalized source headers to canonical names.
	Aliases map[string]string
	// Numeric columns are coerced after validation; unparseable values
	// become zero.
	Numeric  []string
	FoldCase bool
	Currency string
	Cols     Columns
	// Breakdowns run in order after the totals step.
	Breakdowns []Breakdown
}

var profiles = map[Key]*Profile{
	MTNCDR: {
		Key:     MTNCDR,
		Name:    "MTN Call Detail Records",
		Product: ProductCDR,
		Required: []string{
			"calling_no", "called_no", "duration", "event_date_time",
			"latitude", "longitude", "azimuth",
		},
		Aliases: map[string]string{
			"calling number": "calling_no",
			"called number":  "called_no",
			"date and time":  "event_date_time",
			"event date":     "event_date_time",
			"lat":            "latitude",
			"lon":            "longitude",
			"long":           "longitude",
		},
		Numeric:  []string{"duration", "latitude", "longitude", "azimuth"},
		FoldCase: true,
		Cols: Columns{
			Caller:    "calling_no",
			Callee:    "called_no",
			Duration:  "duration",
			IMEI:      "imei",
			CallType:  "call_type",
			Timestamp: "event_date_time",
			Latitude:  "latitude",
			Longitude: "longitude",
			Azimuth:   "azimuth",
		},
		Breakdowns: []Breakdown{
			{Column: "called_no", Title: "Top 5 Contacts", N: 5,
				Insight: "Most contacted number: %s with %d calls"},
			{Column: "imei", Title: "Top 5 IMEIs", N: 5,
				Insight: "Most used device: IMEI %s with %d calls"},
		},
	},
	TelecelCDR: {
		Key:     TelecelCDR,
		Name:    "Telecel Call Detail Records",
		Product: ProductCDR,
		Required: []string{
			"calling_no", "called_no", "duration", "event_date_time",
			"latitude", "longitude", "azimuth",
		},
		Aliases: map[string]string{
			"calling number": "calling_no",
			"called number":  "called_no",
			"a number":       "calling_no",
			"b number":       "called_no",
			"date and time":  "event_date_time",
		},
		Numeric:  []string{"duration", "latitude", "longitude", "azimuth"},
		FoldCase: true,
		Cols: Columns{
			Caller:    "calling_no",
			Callee:    "called_no",
			Duration:  "duration",
			IMEI:      "imei",
			CallType:  "call_type",
			Timestamp: "event_date_time",
			Latitude:  "latitude",
			Longitude: "longitude",
			Azimuth:   "azimuth",
		},
		Breakdowns: []Breakdown{
			{Column: "called_no", Title: "Top 5 Contacts", N: 5,
				Insight: "Most contacted number: %s with %d calls"},
			{Column: "imei", Title: "Top 5 IMEIs", N: 5,
				Insight: "Most used device: IMEI %s with %d calls"},
		},
	},
	AirtelTigoCDR: {
		Key:     AirtelTigoCDR,
		Name:    "AirtelTigo Call Detail Records",
		Product: ProductCDR,
		Required: []string{
			"Owner Number", "Outgoing", "Incoming", "Duration",
			"Call Type", "Event Date & Time", "Latitude", "Longitude",
		},
		Numeric: []string{"Duration", "Latitude", "Longitude", "Azimuth"},
		Cols: Columns{
			Caller:    "Owner Number",
			Callee:    "Outgoing",
			Incoming:  "Incoming",
			Duration:  "Duration",
			IMEI:      "IMEI",
			CallType:  "Call Type",
			Timestamp: "Event Date & Time",
			Latitude:  "Latitude",
			Longitude: "Longitude",
			Azimuth:   "Azimuth",
		},
		Breakdowns: []Breakdown{
			{Column: "Outgoing", Title: "Top Outgoing Contacts", N: 5,
				Insight: "Most contacted number: %s with %d calls"},
			{Column: "Incoming", Title: "Top Incoming Contacts", N: 5},
			{Column: "IMEI", Title: "IMEI Frequency Analysis", N: 5,
				Insight: "Most used device: IMEI %s with %d records"},
			{Column: "Cell Details", Title: "Most Used Cell Towers", N: 5,
				Insight: "Most used cell tower: %s with %d records"},
		},
	},
	MTNCash: {
		Key:      MTNCash,
		Name:     "MTN Mobile Money",
		Product:  ProductCash,
		Required: []string{"TRANSACTION TYPE", "FROM AMOUNT"},
		Numeric:  []string{"FROM AMOUNT"},
		Currency: "₵",
		Cols: Columns{
			TxType:    "TRANSACTION TYPE",
			Amount:    "FROM AMOUNT",
			Sender:    "FROM ACCOUNT NAME",
			Receiver:  "TO ACCOUNT NAME",
			Timestamp: "DATE",
		},
		Breakdowns: []Breakdown{
			{Column: "TRANSACTION TYPE", Title: "Transaction Types",
				Insight: "Most common transaction type: %s with %d transactions"},
			{Column: "FROM ACCOUNT NAME", Title: "Top Senders", N: 5,
				Insight: "Top sender: %s with %d transactions"},
			{Column: "TO ACCOUNT NAME", Title: "Top Receivers", N: 5,
				Insight: "Top receiver: %s with %d transactions"},
		},
	},
	TelecelCash: {
		Key:      TelecelCash,
		Name:     "Telecel Cash",
		Product:  ProductCash,
		Required: []string{"Paid In", "Withdrawn", "Balance", "Opposite Party"},
		Numeric:  []string{"Paid In", "Withdrawn", "Balance"},
		Currency: "GH₵ ",
		Cols: Columns{
			PaidIn:       "Paid In",
			Withdrawn:    "Withdrawn",
			Balance:      "Balance",
			Counterparty: "Opposite Party",
			Status:       "Transaction Status",
			Timestamp:    "Completion Time",
		},
		Breakdowns: []Breakdown{
			{Column: "Transaction Status", Title: "Transaction Status"},
			{Column: "Opposite Party", Title: "Top 5 Counterparties", N: 5,
				Insight: "Most frequent counterparty: %s with %d transactions"},
		},
	},
	AirtelTigoCash: {
		Key:      AirtelTigoCash,
		Name:     "AirtelTigo Cash",
		Product:  ProductCash,
		Required: []string{"Paid In", "Withdrawn", "Balance", "Opposite Party"},
		Numeric:  []string{"Paid In", "Withdrawn", "Balance"},
		Currency: "GH₵ ",
		Cols: Columns{
			PaidIn:       "Paid In",
			Withdrawn:    "Withdrawn",
			Balance:      "Balance",
			Counterparty: "Opposite Party",
			Status:       "Transaction Status",
			Timestamp:    "Completion Time",
		},
		Breakdowns: []Breakdown{
			{Column: "Transaction Status", Title: "Transaction Status"},
			{Column: "Opposite Party", Title: "Top 5 Counterparties", N: 5,
				Insight: "Most frequent counterparty: %s with %d transactions"},
		},
	},
}

// Lookup returns the profile for a carrier key.
func Lookup(key Key) (*Profile, error) {
	p, ok := profiles[key]
	if !ok {
		return nil, core.ErrUnknownCarrier
	}
	return p, nil
}

// Keys returns all registered carrier keys in a stable order.
func Keys() []Key {
	return []Key{MTNCDR, TelecelCDR, AirtelTigoCDR, MTNCash, TelecelCash, AirtelTigoCash}
}
