package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cdrlens/adapters/geocode"
	"cdrlens/adapters/render"
	"cdrlens/adapters/report"
	"cdrlens/adapters/store"
	"cdrlens/adapters/tabular"
	"cdrlens/domain/carrier"
	"cdrlens/internal/config"
	"cdrlens/internal/logx"
	"cdrlens/internal/pipeline"
)

// One-shot analysis of a single export file, printing progress to stderr and
// the report location on completion.
func main() {
	carrierFlag := flag.String("carrier", "", "carrier profile key (see -list)")
	listFlag := flag.Bool("list", false, "list carrier profile keys and exit")
	flag.Parse()

	if *listFlag {
		for _, key := range carrier.Keys() {
			p, _ := carrier.Lookup(key)
			fmt.Printf("%-18s %s\n", key, p.Name)
		}
		return
	}

	if *carrierFlag == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cdrlens-cli -carrier <key> <file.xlsx|file.csv>")
		os.Exit(2)
	}

	log := logx.NewDefaultLogger()
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	st, err := store.Open(cfg.Paths.DatabasePath)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	dataset, err := tabular.NewReader().Read(flag.Arg(0))
	if err != nil {
		fatal(err)
	}

	locator := geocode.NewCache(cfg.Geocode, st, log)
	orch := pipeline.NewOrchestrator(
		cfg.Paths.OutputDir,
		locator,
		render.NewGenerator(log),
		report.NewBuilder(),
		st,
		log,
	)

	run, err := orch.Start(context.Background(), carrier.Key(*carrierFlag), flag.Arg(0), dataset)
	if err != nil {
		fatal(err)
	}

	for ev := range run.Events() {
		switch ev.Type {
		case pipeline.EventProgress:
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", ev.Percent, ev.Message)
		case pipeline.EventFailed:
			fatal(fmt.Errorf("analysis failed: %s", ev.Err))
		case pipeline.EventCompleted:
			fmt.Println("Key Insights:")
			for _, line := range ev.Insights {
				fmt.Printf("  - %s\n", line)
			}
			if path, ok := ev.Artifacts["report_md"]; ok {
				fmt.Printf("Report: %s\n", path)
			}
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
