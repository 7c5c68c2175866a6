package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/storefront/internal/api"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/chat"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/jobs"
	"github.com/safar/storefront/internal/logging"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/service"
	"github.com/safar/storefront/internal/store/backend"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	repos, err := st.ResolveAll()
	if err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	accounts := service.NewAccounts(repos.Clients, tokens, logger)
	if err := accounts.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return err
	}

	checkout := service.NewCheckout(repos.Orders, repos.Products, repos.Cart,
		payment.NewPayPalClient(cfg.Payment), publisher, logger)

	srv := api.NewServer(api.Deps{
		Catalog:   service.NewCatalog(repos.Products, repos.Categories),
		Accounts:  accounts,
		Cart:      service.NewCart(repos.Cart, repos.Products),
		Checkout:  checkout,
		Assistant: service.NewAssistant(repos.Products, chat.NewOpenAIClient(cfg.Chat), logger),
		Tokens:    tokens,
		Clients:   repos.Clients,
		Logger:    logger,
	})

	scheduler, err := jobs.New(cfg.Jobs, checkout, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("backend", st.Backend()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newPublisher(cfg config.BrokerConfig, logger *zap.Logger) (events.Publisher, func(), error) {
	if cfg.URL == "" {
		logger.Info("no broker configured, order events are not published")
		return events.NopPublisher{}, func() {}, nil
	}

	pool, err := events.NewChannelPool(cfg.URL, cfg.Queue, cfg.ChannelPoolSize)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing order events", zap.String("queue", cfg.Queue))
	return events.NewAMQPPublisher(pool, cfg.Queue, logger), func() { pool.Close() }, nil
}
