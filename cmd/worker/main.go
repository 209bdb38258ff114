package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/config"
	"github.com/josearceinfo-star/sermagri/internal/logging"
	"github.com/josearceinfo-star/sermagri/internal/receipt"
)

// The worker drains the receipt queue. Printing is delegated to the log
// dispatcher until a printer driver is attached.
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

	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required for the receipt worker")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			receipt.Queue: 1,
		},
		Logger: logger.Sugar().Named("asynq"),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(receipt.TaskTypePrint, receipt.NewPrintHandler(receipt.NewLogDispatcher(logger), logger))

	if err := srv.Start(mux); err != nil {
		logger.Fatal("start receipt worker", zap.Error(err))
	}
	logger.Info("receipt worker started", zap.String("queue", receipt.Queue))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	srv.Shutdown()
	logger.Info("receipt worker stopped")
}
