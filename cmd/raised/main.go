// Command raised runs the raise ledger service behind an HTTP API.
//
// Storage, blob, and listen configuration come from RAISECORE_* environment
// variables; the raise itself is configured through RAISECORE_RAISE_*. The
// daemon binds in-process token ledgers, which suits development and
// single-node deployments where raised is the system of record for balances.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raisecore/internal/adapters/raiseapi"
	"raisecore/internal/blob"
	"raisecore/internal/core"
	tokenmem "raisecore/internal/infra/token/memory"
	"raisecore/pkg/domain"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("raised exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, depositDecimals, err := configFromEnv()
	if err != nil {
		return err
	}

	assets := tokenmem.NewLedger("Deposit Asset", "BASE", depositDecimals)
	assets.SetCustodian(cfg.CustodyAccount)
	claims := tokenmem.NewLedger(cfg.Name, cfg.Symbol, domain.ClaimTokenDecimals)

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []core.ServiceOption{
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithMetricsRecorder(metrics),
	}
	if os.Getenv("RAISECORE_BLOB_DRIVER") != "" {
		archiveStore, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		opts = append(opts, core.WithReceiptArchive(core.NewBlobReceiptArchive(archiveStore)))
		logger.Info("receipt archive enabled", "driver", archiveStore.Driver())
	}

	svc, err := core.NewService(ctx, store, assets, claims, cfg, opts...)
	if err != nil {
		return fmt.Errorf("construct service: %w", err)
	}

	mux := http.NewServeMux()
	api := raiseapi.NewHandler(svc)
	mux.Handle("/api/v1/raise", api)
	mux.Handle("/api/v1/raise/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("RAISECORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("raised listening", "addr", addr, "raise", cfg.Name)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func configFromEnv() (core.Config, uint8, error) {
	cfg := core.Config{
		Name:           os.Getenv("RAISECORE_RAISE_NAME"),
		Symbol:         os.Getenv("RAISECORE_RAISE_SYMBOL"),
		Operator:       os.Getenv("RAISECORE_RAISE_OPERATOR"),
		CustodyAccount: os.Getenv("RAISECORE_RAISE_CUSTODY_ACCOUNT"),
	}
	if raw := os.Getenv("RAISECORE_RAISE_MIN_INVESTMENT"); raw != "" {
		amount, err := domain.ParseAmount(raw)
		if err != nil {
			return core.Config{}, 0, fmt.Errorf("parse RAISECORE_RAISE_MIN_INVESTMENT: %w", err)
		}
		cfg.MinInvestment = amount
	}
	if raw := os.Getenv("RAISECORE_RAISE_OPERATOR_ALLOCATION_UNIT"); raw != "" {
		amount, err := domain.ParseAmount(raw)
		if err != nil {
			return core.Config{}, 0, fmt.Errorf("parse RAISECORE_RAISE_OPERATOR_ALLOCATION_UNIT: %w", err)
		}
		cfg.OperatorAllocationUnit = amount
	}
	decimals := uint8(6)
	if raw := os.Getenv("RAISECORE_DEPOSIT_DECIMALS"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return core.Config{}, 0, fmt.Errorf("parse RAISECORE_DEPOSIT_DECIMALS: %w", err)
		}
		decimals = uint8(parsed)
	}
	return cfg, decimals, nil
}
