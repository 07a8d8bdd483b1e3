package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go-sales-etl/internal/config"
	"go-sales-etl/internal/logging"
	"go-sales-etl/internal/maintenance"
	"go-sales-etl/internal/pipeline"
	"go-sales-etl/internal/store"
)

func main() {
	sourceFlag := flag.String("source", "", "override the configured source file path")
	cleanup := flag.Bool("cleanup", false, "run retention cleanup instead of the pipeline")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.Log.Level)

	st, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etl: cannot open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "etl: cannot ensure schema: %v\n", err)
		os.Exit(1)
	}

	if *cleanup {
		janitor := maintenance.NewJanitor(st, cfg.Retention.Days, log)
		if _, err := janitor.RunOnce(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "etl: retention cleanup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	source := cfg.Source.Path
	if *sourceFlag != "" {
		source = *sourceFlag
	}

	extractor := pipeline.NewCSVExtractor(source)
	transformer := pipeline.NewTransformer(log)
	loader := pipeline.NewLoader(st, st, pipeline.LoaderOptions{
		ChunkSize: cfg.Load.ChunkSize,
		Workers:   cfg.Load.Workers,
		Timeout:   cfg.Database.StoreTimeout(),
		Policy: pipeline.RetryPolicy{
			MaxAttempts:   cfg.Load.MaxAttempts,
			InitialDelay:  cfg.Load.InitialDelay(),
			MaxDelay:      cfg.Load.MaxDelay(),
			BackoffFactor: 2.0,
			Transient:     store.IsTransient,
		},
	}, log)
	tracker := pipeline.NewTracker(st)

	orch := pipeline.NewOrchestrator(extractor, transformer, loader, tracker, log)
	summary, err := orch.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etl: run %s failed at stage %s: %v\n",
			summary.ExecutionID, summary.FailedStage, err)
		os.Exit(1)
	}

	log.Info("run finished",
		"execution_id", summary.ExecutionID,
		"state", string(summary.State),
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"rows_loaded", summary.RowsLoaded)
}
