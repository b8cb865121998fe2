package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendpool/config"
	"lendpool/native/lending"
	"lendpool/observability/logging"
	"lendpool/rpc"
	"lendpool/rpc/modules"
	"lendpool/storage"
)

const memoryDataDir = ":memory:"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("lendpoold", cfg.Environment, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	logger.Info("starting lendpoold", "config", fmt.Sprintf("%+v", cfg.Sanitized()))

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine := lending.NewEngine(lending.NewStore(db))

	if strings.TrimSpace(cfg.GenesisFile) != "" {
		genesis, err := lending.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			logger.Error("load genesis", slog.Any("error", err))
			os.Exit(1)
		}
		if err := genesis.Apply(engine); err != nil {
			logger.Error("apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("genesis applied", "allocations", len(genesis.Allocations))
	}

	module := modules.NewLendingModule(engine)
	server := rpc.NewServer(module, rpc.Config{
		ListenAddress:     cfg.RPCAddress,
		AuthToken:         cfg.AuthToken,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.RateLimitBurst,
		Logger:            logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetrics(cfg.MetricsAddress, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info("lendpoold stopped")
}

func openDatabase(dataDir string) (storage.Database, error) {
	if strings.TrimSpace(dataDir) == memoryDataDir {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

func startMetrics(address string, logger *slog.Logger) *http.Server {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	return srv
}
