package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-checkout/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-checkout/internal/config"
	"github.com/rovshanmuradov/solana-checkout/internal/logger"
	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/metrics"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
	"github.com/rovshanmuradov/solana-checkout/internal/settlement"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
	boltstore "github.com/rovshanmuradov/solana-checkout/internal/storage/bolt"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/redis"
	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/screen"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	keypairPath := flag.String("keypair", "", "Path to a keypair file exposed as the Keypair wallet")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *keypairPath != "" {
		cfg.KeypairPath = *keypairPath
	}

	// Терминал занят виджетом, логи пишем только в файл
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Console = false
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()
	lg := appLogger.Logger

	if err := run(rootCtx, cfg, lg); err != nil {
		lg.Error("Checkout widget failed", zap.Error(err))
		log.Fatalf("Checkout widget failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lg.Info("Starting checkout widget",
		zap.String("backend_url", cfg.BackendURL),
		zap.String("rpc_url", cfg.RPCURL))

	kv, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := notify.NewBus(lg, 64)
	bus.SetDefaultDuration(cfg.NotificationDurationValue())
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = bus.Shutdown(shutdownCtx)
	}()

	updates := ui.NewUpdateSender(ui.DefaultUpdateBuffer, lg)
	defer updates.Close()
	bus.Subscribe(updates.NotificationHandler())

	ns := wallet.NewNamespace()
	if cfg.KeypairPath != "" {
		kp, err := wallet.LoadKeypair(cfg.KeypairPath)
		if err != nil {
			return err
		}
		ns.Inject("keypair", kp)
		lg.Info("Keypair wallet available", zap.String("address", kp.Address().String()))
	}

	store := session.NewStore(ctx, wallet.NewProvider(ns), session.NewKVPersister(kv), bus, lg,
		session.WithOnChange(updates.SessionListener()))

	collector := metrics.NewCollector(prometheus.NewRegistry())
	backend := relay.NewBackendClient(relay.BackendOptions{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BuildTimeoutDuration(),
	}, lg)

	poller := quote.NewController(backend, quote.Options{
		Debounce:     cfg.DebounceDuration(),
		PollInterval: cfg.PollDuration(),
		Timeout:      cfg.QuoteTimeoutDuration(),
		Metrics:      collector,
		OnChange:     updates.QuoteListener(),
	}, lg)
	defer poller.Stop()

	sendOpts := solbc.DefaultSendOptions
	sendOpts.MaxRetries = cfg.SendMaxRetries
	chain := solbc.NewClient(cfg.RPCURL, lg).WithSendOptions(sendOpts)

	executor := settlement.NewExecutor(store, backend, chain, bus, settlement.Options{
		Registrar:           backend,
		Confirmer:           backend,
		ExplorerURL:         cfg.ExplorerURL,
		BuildTimeout:        cfg.BuildTimeoutDuration(),
		ConfirmTimeout:      cfg.ConfirmTimeoutDuration(),
		ConfirmPollInterval: cfg.ConfirmPollDuration(),
		Metrics:             collector,
	}, lg)

	svc := &ui.Services{
		Ctx:       ctx,
		Wallet:    store,
		Quotes:    poller,
		Payments:  executor,
		Merchants: merchant.NewRegistry(ctx, kv, bus, lg),
		Notices:   notify.NewStore(),
		Namespace: ns,
		Logger:    lg,
	}

	root := ui.NewSafeModel(screen.NewApp(svc, updates), lg, bus)
	program := tea.NewProgram(root,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Сохранённая сессия переподключается в фоне, виджет уже отвечает
		if err := store.Restore(gCtx); err != nil {
			lg.Info("Wallet session not restored", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

// openStore returns redis when configured, otherwise a bbolt file so the
// wallet session and merchants survive restarts.
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (storage.KV, func(), error) {
	if cfg.RedisAddr == "" {
		path := cfg.StorePath
		if path == "" {
			var err error
			if path, err = boltstore.DefaultPath("widget.db"); err != nil {
				return nil, nil, err
			}
		}
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("Using local widget store", zap.String("path", path))
		return store, func() { _ = store.Close() }, nil
	}
	client, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, lg)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewStore(client, "checkout-widget:"), func() { _ = client.Close() }, nil
}
