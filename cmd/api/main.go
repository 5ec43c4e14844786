package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/cartsync"
	"storefront/internal/checkout"
	"storefront/internal/commerce"
	"storefront/internal/commerce/memory"
	"storefront/internal/commerce/storefront"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/importer"
	"storefront/internal/logging"
	"storefront/internal/ratelimit"
	cartstaterepo "storefront/internal/repository/cartstate"
	leadrepo "storefront/internal/repository/lead"
	"storefront/internal/seed"
	"storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	leadsvc "storefront/internal/service/lead"
	productsvc "storefront/internal/service/product"
)

const depositProductName = "Project deposit"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var (
		pool      *pgxpool.Pool
		leadRepo  leadrepo.Repository
		cartStore cartstaterepo.Repository
	)
	if cfg.UsePostgres() {
		pool, err = db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		leadRepo = leadrepo.NewPostgres(pool, logger)
		cartStore = cartstaterepo.NewPostgres(pool, logger)
	} else {
		logger.Warn("DB_DSN not set, leads and carts are kept in memory")
		leadRepo = leadrepo.NewMemory(logger)
		cartStore = cartstaterepo.NewMemory(logger)
	}

	client, err := commerceClient(cfg, logger)
	if err != nil {
		logger.Fatal("init commerce client", zap.Error(err))
	}

	registry, err := cartsync.NewRegistry(client, cfg.CartCacheSize, cartsync.Options{
		Store:    cartStore,
		Logger:   logger,
		Currency: cfg.Storefront.Currency,
	})
	if err != nil {
		logger.Fatal("init cart registry", zap.Error(err))
	}

	minter, err := checkoutMinter(cfg, logger)
	if err != nil {
		logger.Fatal("init checkout", zap.Error(err))
	}

	limiter := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window, nil)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go prune(pruneCtx, limiter, cfg.RateLimit.Window, logger)

	deps := httpserver.Deps{
		ProductSvc: productsvc.New(client),
		CartSvc:    cartsvc.New(registry, client, logger),
		LeadSvc:    leadsvc.New(leadRepo, limiter, minter, logger),
		ClientIDs:  anonymous.New(0),
		CORS: httpserver.CORSConfig{
			AllowOrigins: cfg.CORS.AllowOrigins,
			MaxAge:       cfg.CORS.MaxAge,
		},
		Admin: httpserver.AdminConfig{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
		},
		TrustedProxies: cfg.TrustedProxies,
	}
	if pool != nil {
		deps.DB = pool
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	registry.Wait()
	logger.Info("server stopped")
}

// commerceClient talks to the hosted storefront when a domain is configured and to the
// seeded in-process catalog otherwise.
func commerceClient(cfg config.Config, logger *zap.Logger) (commerce.Client, error) {
	if strings.TrimSpace(cfg.Storefront.Domain) != "" {
		client, err := storefront.New(storefront.Config{
			Domain:      cfg.Storefront.Domain,
			AccessToken: cfg.Storefront.AccessToken,
			APIVersion:  cfg.Storefront.APIVersion,
			Timeout:     cfg.Storefront.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	backend := memory.New(strings.TrimRight(cfg.Checkout.PublicBaseURL, "/")+"/cart/checkout", logger)
	n := seed.Apply(backend, cfg.Storefront.Currency)
	if path := strings.TrimSpace(cfg.Storefront.CatalogCSV); path != "" {
		imported, err := importCatalog(path, backend, cfg.Storefront.Currency)
		if err != nil {
			return nil, err
		}
		n += imported
	}
	logger.Info("using in-process catalog", zap.Int("products", n))
	return backend, nil
}

func importCatalog(path string, backend *memory.Backend, currency string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open catalog")
	}
	defer f.Close()
	n, err := importer.NewCSVImporter(f, backend, currency).Run(context.Background())
	if err != nil {
		return n, errors.Wrapf(err, "import catalog %s", path)
	}
	return n, nil
}

func checkoutMinter(cfg config.Config, logger *zap.Logger) (checkout.Minter, error) {
	if strings.TrimSpace(cfg.Checkout.StripeSecretKey) == "" {
		logger.Info("no stripe key, lead checkout goes straight to the success page")
		return checkout.NewLocal(cfg.Checkout.PublicBaseURL, cfg.Checkout.SuccessPath), nil
	}
	stripe, err := checkout.NewStripe(checkout.StripeConfig{
		APIKey:      cfg.Checkout.StripeSecretKey,
		BaseURL:     cfg.Checkout.PublicBaseURL,
		SuccessPath: cfg.Checkout.SuccessPath,
		CancelPath:  cfg.Checkout.CancelPath,
		AmountCents: cfg.Checkout.DepositCents,
		Currency:    cfg.Checkout.DepositCurrency,
		ProductName: depositProductName,
	}, logger)
	if err != nil {
		return nil, err
	}
	return stripe, nil
}

// prune drops idle rate limit keys once per window.
func prune(ctx context.Context, limiter *ratelimit.SlidingWindow, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(); n > 0 {
				logger.Debug("pruned rate limit keys", zap.Int("keys", n))
			}
		}
	}
}
