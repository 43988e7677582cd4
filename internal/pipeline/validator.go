package pipeline

import (
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
)

// Validate normalizes the dataset's column names against the profile and
// verifies every required column is present afterwards. On failure it
// returns a SchemaError enumerating every missing column, not just the
// first. On success the profile's numeric columns are coerced as a side
// effect (unparseable cells become zero).
func Validate(d *Dataset, p *carrier.Profile) error {
	if d == nil || d.Len() == 0 {
		return core.ErrNoData
	}

	d.Normalize(p)

	var missing []string
	for _, col := range p.Required {
		if !d.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &core.SchemaError{Missing: missing}
	}

	d.Coerce(p.Numeric...)
	return nil
}
