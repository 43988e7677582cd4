package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWritesOrderedSections(t *testing.T) {
	p, err := carrier.Lookup(carrier.MTNCDR)
	require.NoError(t, err)

	res := &analysis.Result{}
	res.Add("Total Calls", "42")
	res.Add("Top 5 Contacts", "Frequency")
	res.Add("0242222222", "12")

	outDir := t.TempDir()
	artifacts := map[string]string{
		"hourly":  filepath.Join(outDir, "hourly_distribution.png"),
		"map":     filepath.Join(outDir, "cdr_map.html"),
		"network": filepath.Join(outDir, "call_network.html"),
	}
	insights := []string{"Peak calling hour: 10:00 with 12 calls"}

	out, err := NewBuilder().Build(p, "export.xlsx", res, insights, artifacts, outDir)
	require.NoError(t, err)

	raw, err := os.ReadFile(out["report_md"])
	require.NoError(t, err)
	md := string(raw)

	sections := []string{
		"# MTN Call Detail Records Analysis Report",
		"Source file: `export.xlsx`",
		"## Summary Statistics",
		"**Total Calls**: 42",
		"### Top 5 Contacts",
		"## Key Insights",
		"Peak calling hour",
		"## Visualizations",
		"![Hourly Distribution](hourly_distribution.png)",
		"[Interactive location map](cdr_map.html)",
	}
	pos := -1
	for _, section := range sections {
		idx := strings.Index(md, section)
		require.GreaterOrEqual(t, idx, 0, section)
		assert.Greater(t, idx, pos, "section %q out of order", section)
		pos = idx
	}

	html, err := os.ReadFile(out["report_html"])
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1")
	assert.Contains(t, string(html), "Total Calls")
}

func TestBuildOmitsEmptySections(t *testing.T) {
	p, err := carrier.Lookup(carrier.TelecelCash)
	require.NoError(t, err)

	res := &analysis.Result{}
	res.Add("Total Transactions", "3")

	out, err := NewBuilder().Build(p, "", res, nil, nil, t.TempDir())
	require.NoError(t, err)

	raw, err := os.ReadFile(out["report_md"])
	require.NoError(t, err)
	md := string(raw)

	assert.NotContains(t, md, "## Key Insights")
	assert.NotContains(t, md, "## Visualizations")
	assert.NotContains(t, md, "Source file")
}
