package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-checkout/internal/api"
	"github.com/rovshanmuradov/solana-checkout/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-checkout/internal/config"
	"github.com/rovshanmuradov/solana-checkout/internal/custody"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/logger"
	"github.com/rovshanmuradov/solana-checkout/internal/metrics"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
	boltstore "github.com/rovshanmuradov/solana-checkout/internal/storage/bolt"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/redis"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Pretty = cfg.DebugLogging
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()
	lg := appLogger.Logger

	if err := run(rootCtx, cfg, lg); err != nil {
		lg.Fatal("Relay backend failed", zap.Error(err))
	}
	lg.Info("Relay backend stopped")
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	lg.Info("Starting relay backend",
		zap.String("mode", string(cfg.Mode)),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("rpc_url", cfg.RPCURL))

	kv, health, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	aggregator := jupiter.NewClient(jupiter.Options{
		BaseURL:           cfg.AggregatorURL,
		APIKey:            cfg.AggregatorAPIKey,
		RequestsPerSecond: cfg.AggregatorRPS,
		MaxElapsed:        cfg.QuoteTimeoutDuration(),
	}, lg)

	policy := jupiter.DefaultSwapPolicy()
	policy.PriorityLevel = jupiter.PriorityLevel(cfg.PriorityLevel)
	policy.MaxPriorityLamports = cfg.MaxPriorityLamports
	builder := relay.NewAggregatorBuilder(aggregator, policy, cfg.SlippageBps, lg)

	sendOpts := solbc.DefaultSendOptions
	sendOpts.MaxRetries = cfg.SendMaxRetries
	chain := solbc.NewClient(cfg.RPCURL, lg).WithSendOptions(sendOpts)

	deps := api.Deps{
		Quotes:   quote.NewAggregatorSource(aggregator, cfg.SlippageBps),
		Builder:  builder,
		Registry: relay.NewRegistry(kv, cfg.RegistrationTTLDuration()),
		Chain:    chain,
		Ledger:   storage.NewKVLedger(kv),
		Metrics:  collector,
		Gatherer: reg,
		Health:   append(health, chain),
		Logger:   lg,
	}

	// Кастодиальный режим: сервер подписывает своим ключом
	if cfg.Mode == config.ModeCustodial {
		signer, err := wallet.NewKeypair(cfg.CustodialKey)
		if err != nil {
			return err
		}
		deps.Custody = custody.NewService(signer, builder, chain, sendOpts, cfg.ExplorerURL, lg)
		lg.Info("Custodial signing enabled", zap.String("address", deps.Custody.Address().String()))
	}

	if !cfg.DebugLogging {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		lg.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns redis when configured, otherwise a local bbolt file.
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (storage.KV, []api.Pinger, func(), error) {
	if cfg.RedisAddr == "" {
		path := cfg.StorePath
		if path == "" {
			var err error
			if path, err = boltstore.DefaultPath("relay.db"); err != nil {
				return nil, nil, nil, err
			}
		}
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		lg.Warn("No redis_addr configured, using local bbolt storage", zap.String("path", path))
		return store, nil, func() { _ = store.Close() }, nil
	}
	client, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, lg)
	if err != nil {
		return nil, nil, nil, err
	}
	store := redis.NewStore(client, "checkout:")
	return store, []api.Pinger{store}, func() { _ = client.Close() }, nil
}
