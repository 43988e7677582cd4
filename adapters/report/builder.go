package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// chartOrder fixes the embedding order of image artifacts in the report.
var chartOrder = []struct {
	key   string
	title string
}{
	{"hourly", "Hourly Distribution"},
	{"daily", "Daily Distribution"},
	{"period", "Time Period Distribution"},
	{"durations", "Call Duration Distribution"},
	{"amounts", "Transaction Amount Distribution"},
	{"top_called", "Top Called Numbers"},
	{"locations", "Location Plot"},
	{"types", "Transaction Types"},
	{"parties", "Top Parties"},
}

// Interactive artifacts are linked, not embedded.
var linkedArtifacts = []struct {
	key   string
	title string
}{
	{"map", "Interactive location map"},
	{"network", "Interactive call network"},
}

// Builder writes the run report as Markdown and converts it to a standalone
// HTML page.
type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build writes report.md and report.html into outDir and returns their
// artifact entries.
func (b *Builder) Build(p *carrier.Profile, source string, res *analysis.Result, insights []string, artifacts map[string]string, outDir string) (map[string]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create report dir: %w", err)
	}

	md := b.markdown(p, source, res, insights, artifacts)

	mdPath := filepath.Join(outDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, fmt.Errorf("writing report markdown: %w", err)
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, b.toHTML(md), 0o644); err != nil {
		return nil, fmt.Errorf("writing report html: %w", err)
	}

	return map[string]string{"report_md": mdPath, "report_html": htmlPath}, nil
}

func (b *Builder) markdown(p *carrier.Profile, source string, res *analysis.Result, insights []string, artifacts map[string]string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s Analysis Report\n\n", p.Name)
	fmt.Fprintf(&sb, "Generated on %s\n\n", b.now().Format("2006-01-02 15:04:05"))
	if source != "" {
		fmt.Fprintf(&sb, "Source file: `%s`\n\n", source)
	}

	sb.WriteString("## Summary Statistics\n\n")
	if res != nil {
		for _, pair := range res.Pairs {
			if pair.Value == "" {
				fmt.Fprintf(&sb, "\n### %s\n\n", pair.Label)
				continue
			}
			fmt.Fprintf(&sb, "- **%s**: %s\n", pair.Label, pair.Value)
		}
	}
	sb.WriteString("\n")

	if len(insights) > 0 {
		sb.WriteString("## Key Insights\n\n")
		for _, line := range insights {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}

	var embedded, linked []string
	for _, c := range chartOrder {
		if path, ok := artifacts[c.key]; ok {
			embedded = append(embedded, fmt.Sprintf("### %s\n\n![%s](%s)\n", c.title, c.title, filepath.Base(path)))
		}
	}
	for _, l := range linkedArtifacts {
		if path, ok := artifacts[l.key]; ok {
			linked = append(linked, fmt.Sprintf("- [%s](%s)\n", l.title, filepath.Base(path)))
		}
	}
	if len(embedded) > 0 || len(linked) > 0 {
		sb.WriteString("## Visualizations\n\n")
		for _, block := range embedded {
			sb.WriteString(block)
			sb.WriteString("\n")
		}
		for _, line := range linked {
			sb.WriteString(line)
		}
	}

	return sb.String()
}

func (b *Builder) toHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Analysis Report",
	})
	return markdown.Render(doc, renderer)
}
