package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"storefront/internal/access"
	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/orders"
	"storefront/internal/pricing"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("api", cfg.API.BaseURL).Msg("starting storefront")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewCollector(registry)
	}

	api, err := apiclient.New(apiclient.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
		Metrics:   recorder,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize API client: %w", err)
	}

	provider := session.NewProvider(api, logger)

	rules := pricing.NewRules(cfg.Checkout.TaxRate, cfg.Checkout.FreeShippingThreshold, cfg.Checkout.FlatShippingFee)
	var cartOpts []cart.Option
	if cfg.Database.Enabled {
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		cartRepo := repository.NewCartRepository(pool, cfg.Database.CartID, logger)
		if err := cartRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare cart snapshot schema: %w", err)
		}
		cartOpts = append(cartOpts, cart.WithPersister(cartRepo))
	} else {
		logger.Info().Msg("cart snapshot persistence disabled, cart lives in memory only")
	}
	store := cart.NewStore(rules, logger, cartOpts...)

	// Bootstrap: restore the cart and the server session before serving.
	if err := store.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("starting with an empty cart")
	}
	restoreCtx, restoreCancel := context.WithTimeout(ctx, cfg.API.Timeout)
	if identity := provider.RestoreSession(restoreCtx); identity == nil {
		logger.Info().Msg("no active session")
	}
	restoreCancel()

	history := orders.NewHistory(api, provider, logger)
	confirmations := orders.NewConfirmations(provider, history)
	checkoutService := checkout.NewService(api, store, provider, checkout.Options{
		ConfirmationDelay: cfg.Checkout.ConfirmationDelay,
		Metrics:           recorder,
		Confirmations:     confirmations,
	}, logger)

	// Initialize router
	mux := router.New(router.Deps{
		Guard:          access.NewGuard(),
		Identities:     provider,
		Session:        handler.NewSessionHandler(provider, logger),
		Cart:           handler.NewCartHandler(store, logger),
		Checkout:       handler.NewCheckoutHandler(checkoutService, provider, logger),
		Orders:         handler.NewOrderHandler(history, confirmations, provider, logger),
		Views:          handler.NewViewHandler(provider, logger),
		Metrics:        recorder,
		MetricsHandler: metricsHandler(cfg.Metrics, registry),
		MetricsPath:    cfg.Metrics.Path,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.API.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serve(server, logger)
}

func metricsHandler(cfg config.MetricsConfig, registry *prometheus.Registry) http.Handler {
	if !cfg.Enabled {
		return nil
	}
	return metrics.Handler(registry)
}

func serve(server *http.Server, logger zerolog.Logger) error {
	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", server.Addr).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
