package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/secagent/go-api/secagent/audit"
	"github.com/secagent/go-api/secagent/ingest"
	"github.com/secagent/go-api/secagent/postgres"
	"github.com/secagent/go-api/secagent/scan"
	"github.com/secagent/go-api/secagent/slogger"
	"github.com/secagent/go-api/secagent/store"
)

func main() {
	slogger.Init()

	db, err := postgres.NewConnection(postgres.ConfigFromEnv())
	if err != nil {
		slog.Error("Failed to connect to scan record store", "error", err)
		os.Exit(1)
	}
	repo := scan.NewRepository(db)

	// Valkey is optional: without it the worker still scores and persists,
	// it just skips dashboard caching and the audit trail.
	var (
		kv       store.KVStore
		recorder *audit.Recorder
	)
	if kv, err = store.NewValkeyStore(); err != nil {
		slog.Warn("Valkey unavailable, caching and audit disabled", "error", err)
		kv = nil
	} else {
		defer kv.Close()
		recorder = audit.NewRecorder(kv)
		defer recorder.Close()
	}

	processor := ingest.NewProcessor(repo, kv, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Scan worker started")
	processor.Listen(ctx)
	slog.Info("Scan worker stopped")
}
