package render

import (
	"context"
	"os"
	"path/filepath"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/logx"
)

// Spec describes one visualization: its artifact key, output filename and
// render function. A Fn that cannot run (source aggregate skipped upstream)
// or fails mid-render causes its key to be omitted from the artifact map;
// the remaining visualizations are unaffected.
type Spec struct {
	Key  string
	File string
	// Product restricts the spec to one product; empty applies to both.
	Product carrier.Product
	Fn      func(p *carrier.Profile, agg *analysis.Aggregates, path string) error
}

// Generator renders the visualization battery for a run into its output
// directory. The spec list is injectable so tests can exercise the
// isolation behavior directly.
type Generator struct {
	specs []Spec
	log   *logx.Logger
}

func NewGenerator(log *logx.Logger) *Generator {
	return NewGeneratorWithSpecs(DefaultSpecs(), log)
}

func NewGeneratorWithSpecs(specs []Spec, log *logx.Logger) *Generator {
	if log == nil {
		log = logx.NewDefaultLogger()
	}
	return &Generator{specs: specs, log: log}
}

// Render executes every applicable spec, returning artifact key -> file path
// for the ones that succeeded.
func (g *Generator) Render(ctx context.Context, p *carrier.Profile, agg *analysis.Aggregates, outDir string) map[string]string {
	artifacts := make(map[string]string)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		g.log.Error("cannot create artifact dir %s: %v", outDir, err)
		return artifacts
	}

	for _, spec := range g.specs {
		if ctx.Err() != nil {
			return artifacts
		}
		if spec.Product != "" && spec.Product != p.Product {
			continue
		}
		path := filepath.Join(outDir, spec.File)
		if err := spec.Fn(p, agg, path); err != nil {
			g.log.Warn("%v", core.NewRenderError(spec.Key, err))
			continue
		}
		artifacts[spec.Key] = path
	}
	return artifacts
}

// DefaultSpecs is the full visualization battery.
func DefaultSpecs() []Spec {
	return []Spec{
		{Key: "hourly", File: "hourly_distribution.png", Fn: renderHourly},
		{Key: "daily", File: "day_distribution.png", Fn: renderDaily},
		{Key: "period", File: "period_distribution.png", Fn: renderPeriods},
		{Key: "durations", File: "duration_distribution.png", Product: carrier.ProductCDR, Fn: renderDurations},
		{Key: "top_called", File: "top_called.png", Product: carrier.ProductCDR, Fn: renderTopCalled},
		{Key: "locations", File: "location_plot.png", Product: carrier.ProductCDR, Fn: renderLocations},
		{Key: "map", File: "cdr_map.html", Product: carrier.ProductCDR, Fn: renderMap},
		{Key: "network", File: "call_network.html", Product: carrier.ProductCDR, Fn: renderNetwork},
		{Key: "amounts", File: "amount_distribution.png", Product: carrier.ProductCash, Fn: renderAmounts},
		{Key: "types", File: "transaction_types.png", Product: carrier.ProductCash, Fn: renderTypes},
		{Key: "parties", File: "top_parties.png", Product: carrier.ProductCash, Fn: renderParties},
	}
}
