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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"promisevault/config"
	"promisevault/core"
	"promisevault/crypto"
	"promisevault/indexer"
	"promisevault/integrations/webhooks"
	"promisevault/observability/logging"
	telemetry "promisevault/observability/otel"
	"promisevault/rpc"
	"promisevault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		slog.Error("promised exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(cfg.Logging.Env)
	if env == "" {
		env = strings.TrimSpace(os.Getenv("PROMISEVAULT_ENV"))
	}
	logger := logging.Setup(logging.Options{
		Service:    "promised",
		Env:        env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	rt, err := newRuntime(db, cfg, logger)
	if err != nil {
		return err
	}

	ix, err := openIndexer(cfg.Indexer)
	if err != nil {
		return err
	}
	var events rpc.EventSource
	if ix != nil {
		defer ix.Close()
		rt.AddSink(ix)
		events = ix
	}

	dispatcher, err := openWebhook(cfg.Webhook, logger)
	if err != nil {
		return err
	}
	if dispatcher != nil {
		defer dispatcher.Close()
		rt.AddSink(dispatcher)
	}

	server := rpc.NewServer(rt, rpc.Options{
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		TrustedProxies:    cfg.RPC.TrustedProxies,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		Events:            events,
		Logger:            logger,
	})
	logger.Info("promised started",
		slog.Uint64("chainId", rt.ChainID()),
		slog.String("program", rt.Program().String()),
		slog.String("storage", cfg.StorageBackend),
		slog.String("indexer", cfg.Indexer.Driver),
		logging.MaskField("dsn", cfg.Indexer.DSN),
		logging.MaskField("webhook", cfg.Webhook.Endpoint))
	return server.Serve(ctx, cfg.RPCAddress)
}

// newRuntime builds the runtime from cfg and seeds genesis state on first
// start.
func newRuntime(db storage.Database, cfg *config.Config, logger *slog.Logger) (*core.Runtime, error) {
	program := core.DefaultProgram
	if text := strings.TrimSpace(cfg.ProgramAddress); text != "" {
		parsed, err := crypto.ParseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("program address: %w", err)
		}
		program = parsed
	}
	rt, err := core.NewRuntime(db, core.Options{
		ChainID: cfg.ChainID,
		Program: program,
		Deposits: core.Deposits{
			Treasury:       cfg.Deposits.Treasury,
			Promise:        cfg.Deposits.Promise,
			CustodyAccount: cfg.Deposits.CustodyAccount,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	parsed, err := cfg.Genesis.Parse()
	if err != nil {
		return nil, err
	}
	err = rt.ApplyGenesis(&core.Genesis{Balances: parsed.Balances, Mints: parsed.Mints})
	if err != nil && !errors.Is(err, core.ErrGenesisApplied) {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	return rt, nil
}

// openIndexer returns nil when the indexer is disabled.
func openIndexer(cfg config.Indexer) (*indexer.Indexer, error) {
	if cfg.Driver == config.IndexerDisabled {
		return nil, nil
	}
	ix, err := indexer.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	return ix, nil
}

// openWebhook returns nil when no endpoint is configured.
func openWebhook(cfg config.Webhook, logger *slog.Logger) (*webhooks.Dispatcher, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, nil
	}
	opts := []webhooks.Option{
		webhooks.WithLogger(logger),
		webhooks.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if len(cfg.EventPrefixes) > 0 {
		opts = append(opts, webhooks.WithEventPrefixes(cfg.EventPrefixes...))
	}
	dispatcher, err := webhooks.NewDispatcher(cfg.Endpoint, []byte(cfg.Secret), opts...)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	return dispatcher, nil
}
