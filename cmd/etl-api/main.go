package main

import (
	"context"
	"fmt"
	"os"

	"go-sales-etl/internal/api"
	"go-sales-etl/internal/api/handler"
	"go-sales-etl/internal/config"
	"go-sales-etl/internal/logging"
	"go-sales-etl/internal/maintenance"
	"go-sales-etl/internal/store"
	"go-sales-etl/pkg/router"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log.Level)

	st, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etl-api: cannot open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "etl-api: cannot ensure schema: %v\n", err)
		os.Exit(1)
	}

	janitor := maintenance.NewJanitor(st, cfg.Retention.Days, log)
	if err := janitor.Start(cfg.Retention.Cron); err != nil {
		fmt.Fprintf(os.Stderr, "etl-api: cannot schedule retention cleanup: %v\n", err)
		os.Exit(1)
	}
	defer janitor.Stop()

	r := router.New()
	api.RegisterRoutes(r, handler.NewRunHandler(st, cfg, log))

	log.Info("api listening", "addr", cfg.API.Addr)
	if err := r.Start(cfg.API.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "etl-api: server stopped: %v\n", err)
		os.Exit(1)
	}
}
