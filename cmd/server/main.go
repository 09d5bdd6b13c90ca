package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nack098/adasplit/internal/bill"
	"github.com/nack098/adasplit/internal/cardano"
	"github.com/nack098/adasplit/internal/config"
	"github.com/nack098/adasplit/internal/db"
	"github.com/nack098/adasplit/internal/reconciler"
	"github.com/nack098/adasplit/internal/server"
	"github.com/nack098/adasplit/pkg/blockfrost"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	setupLogging()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "config", *configFile)

	// The contract is process-wide read-only state. No script address means
	// no transaction can ever be built, so this is fatal.
	contract, err := cardano.LoadContract(cfg.Contract.BlueprintPath, cardano.Network(cfg.Contract.Network))
	if err != nil {
		slog.Error("Failed to initialize escrow contract", "error", err)
		os.Exit(1)
	}
	slog.Info("Escrow contract initialized",
		"network", cfg.Contract.Network,
		"script_address", contract.ScriptAddress(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PostgreSQL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	store := db.NewBillStore(pool)

	ledger := cardano.NewBlockfrostLedger(blockfrost.NewClient(
		cfg.Blockfrost.ApiUrl,
		cfg.Blockfrost.ProjectID,
		cfg.Blockfrost.Timeout(),
	))
	slog.Info("Blockfrost client initialized", "api_url", cfg.Blockfrost.ApiUrl)

	builder := cardano.NewTxBuilder(contract, ledger)
	svc := bill.NewService(store, contract, builder)

	rec := reconciler.New(store, ledger, cfg.Reconciler.Interval(), cfg.Reconciler.ExpireAfter())
	go rec.Run(ctx)
	slog.Info("Reconciler started", "interval", cfg.Reconciler.Interval())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(svc, cfg.Server.PublicURL),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-signalChan:
		slog.Info("Received termination signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func setupLogging() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      levelFromEnv(),
			TimeFormat: time.Kitchen,
		}),
	))
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
