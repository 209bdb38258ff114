package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/cache"
	"github.com/josearceinfo-star/sermagri/internal/config"
	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/httpapi"
	"github.com/josearceinfo-star/sermagri/internal/logging"
	"github.com/josearceinfo-star/sermagri/internal/receipt"
	"github.com/josearceinfo-star/sermagri/internal/service"
	"github.com/josearceinfo-star/sermagri/internal/snapshot"
	"github.com/josearceinfo-star/sermagri/internal/store"
	"github.com/josearceinfo-star/sermagri/internal/store/memory"
	pgstore "github.com/josearceinfo-star/sermagri/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, repoClosers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}
	closers = append(closers, repoClosers...)

	balances := cache.BalanceCache(cache.NoopBalanceCache{})
	var receipts receipt.Dispatcher = receipt.NewLogDispatcher(logger)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisBalanceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache and log receipts", zap.Error(err))
			_ = redisCache.Close()
		} else {
			balances = redisCache
			closers = append(closers, redisCache.Close)

			queue := receipt.NewQueueDispatcher(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			receipts = queue
			closers = append(closers, queue.Close)
			logger.Info("cache: redis, receipts: queue", zap.String("queue", receipt.Queue))
		}
	} else {
		logger.Info("cache: noop, receipts: log")
	}

	svc := service.New(repo, service.Options{
		TaxRate:  &cfg.TaxRate,
		Company:  cfg.CompanyInfo(),
		Receipts: receipts,
		Cache:    balances,
		CacheTTL: cfg.BalanceCacheTTL,
		Logger:   logger,
		OnEvent: func(e domain.SessionEvent) {
			logger.Debug("session event",
				zap.String("type", e.Type),
				zap.String("session_id", e.SessionID),
				zap.String("next_view", e.NextView),
			)
		},
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Production:    cfg.IsProduction(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("sermagri backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// openRepository picks Postgres when DATABASE_URL is set and the seeded
// memory store otherwise. A memory store with DATA_FILE is restored from
// and saved to that file.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, []func() error, error) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set, refusing in-memory fallback: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, []func() error{pg.Close}, nil
	}

	if cfg.DataFile == "" {
		logger.Info("repository: in-memory")
		return memory.NewSeeded(memory.WithLogger(logger)), nil, nil
	}

	files := snapshot.NewFileStore(cfg.DataFile)
	doc, found, err := files.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load data file: %w", err)
	}
	repo := memory.NewSeeded(memory.WithLogger(logger), memory.WithPersister(files))
	if found {
		if err := repo.Restore(doc); err != nil {
			return nil, nil, fmt.Errorf("restore data file: %w", err)
		}
	}
	logger.Info("repository: in-memory with data file",
		zap.String("path", files.Path()),
		zap.Bool("restored", found),
	)
	return repo, nil, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("TAX_RATE must be between 0 and 1, got %s", cfg.TaxRate)
	}
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}
