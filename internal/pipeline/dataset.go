package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"cdrlens/domain/carrier"
)

var spaceRE = regexp.MustCompile(`\s+`)

// Dataset is the loaded tabular data for one input file: rows of string
// cells keyed by column name. A Dataset is owned exclusively by one analysis
// run and never mutated concurrently.
type Dataset struct {
	Columns []string
	Rows    []map[string]string

	numeric map[string][]float64
}

// NewDataset builds a dataset from ordered columns and row maps.
func NewDataset(columns []string, rows []map[string]string) *Dataset {
	return &Dataset{Columns: columns, Rows: rows, numeric: make(map[string][]float64)}
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Has reports whether a column exists.
func (d *Dataset) Has(col string) bool {
	if col == "" {
		return false
	}
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Strings returns the column's raw cell values, or nil when absent.
func (d *Dataset) Strings(col string) []string {
	if !d.Has(col) {
		return nil
	}
	out := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[col]
	}
	return out
}

// Numeric returns the coerced numeric values of a column. Values that fail
// to parse are zero: a deliberate fill policy inherited from the report
// pipeline, not an error. Coercion is cached per column and idempotent.
func (d *Dataset) Numeric(col string) []float64 {
	if !d.Has(col) {
		return nil
	}
	if vals, ok := d.numeric[col]; ok {
		return vals
	}
	vals := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		vals[i] = coerceFloat(row[col])
	}
	d.numeric[col] = vals
	return vals
}

// Coerce pre-computes numeric coercion for the given columns. Missing
// columns are ignored.
func (d *Dataset) Coerce(cols ...string) {
	for _, col := range cols {
		d.Numeric(col)
	}
}

// Normalize canonicalizes column names per the profile: whitespace is
// trimmed and collapsed, names are case-folded when the profile requires it,
// and known aliases are mapped to their canonical form. Row keys are renamed
// in place.
func (d *Dataset) Normalize(p *carrier.Profile) {
	renames := make(map[string]string, len(d.Columns))
	seen := make(map[string]bool, len(d.Columns))
	cols := make([]string, 0, len(d.Columns))

	for _, col := range d.Columns {
		base := spaceRE.ReplaceAllString(strings.TrimSpace(col), " ")
		name := base
		if canonical, ok := p.Aliases[strings.ToLower(base)]; ok {
			name = canonical
		} else if p.FoldCase {
			name = strings.ReplaceAll(strings.ToLower(base), " ", "_")
		}
		if name != col {
			renames[col] = name
		}
		if !seen[name] {
			seen[name] = true
			cols = append(cols, name)
		}
	}

	if len(renames) > 0 {
		for _, row := range d.Rows {
			for old, renamed := range renames {
				if v, ok := row[old]; ok {
					delete(row, old)
					row[renamed] = v
				}
			}
		}
	}
	d.Columns = cols
	d.numeric = make(map[string][]float64)
}

func coerceFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
