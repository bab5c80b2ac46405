// Command ingest runs local portfolio files through the ingestion pipeline and
// prints one JSON document per file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"portfolio_ingest/pkg/core/config"
	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/normalize"
	"portfolio_ingest/pkg/core/pipeline"
	"portfolio_ingest/pkg/models"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding config.yaml")
	tablesPath := flag.String("tables", "", "lookup tables YAML (overrides ingestion.tables_path)")
	seed := flag.Int64("seed", 0, "synthesis seed, 0 uses the configured seed")
	diagnostics := flag.Bool("diagnostics", false, "attach field-level warnings to each result")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ingest [flags] file...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *tablesPath != "" {
		cfg.Ingestion.TablesPath = *tablesPath
	}
	if *seed != 0 {
		cfg.Ingestion.Seed = *seed
	}

	zl := logger.New(cfg.Logging.Level, "console")
	defer func() { _ = zl.Sync() }()

	tables := normalize.DefaultTables()
	if cfg.Ingestion.TablesPath != "" {
		if tables, err = normalize.LoadTables(cfg.Ingestion.TablesPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	svc := pipeline.NewIngestionService(
		pipeline.WithTables(tables),
		pipeline.WithSeed(cfg.Ingestion.Seed),
		pipeline.WithLogger(logger.NewZapAdapter(zl)),
	)

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range flag.Args() {
		var (
			data *models.ProcessedData
			err  error
		)
		if *diagnostics {
			data, err = svc.ProcessFileWithDiagnostics(ctx, path, diag.NewCollector(cfg.Ingestion.DiagnosticsLimit))
		} else {
			data, err = svc.ProcessFile(ctx, path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if err := enc.Encode(data); err != nil {
			fmt.Fprintf(os.Stderr, "%s: failed to write result: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
