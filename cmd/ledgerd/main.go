package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzen/internal/amqp"
	"finanzen/internal/config"
	apphttp "finanzen/internal/http"
	kontorpc "finanzen/internal/konto/httprpc"
	"finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.LedgerDBPath)
	if err != nil {
		logger.Error("Failed to initialize ledger repository", log.FieldError, err.Error(), log.FieldPath, cfg.LedgerDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	allocator := services.NewBudgetAllocator(repo, logger)
	accounts := kontorpc.NewClient(cfg.KontoBaseURL, cfg.RPCTimeout, logger)

	var publisher apphttp.BalancePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled, balance refresh messages will not be published")
	}

	srv := apphttp.NewLedgerServer(cfg.LedgerAddr, repo, allocator, accounts, publisher, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting ledger server", "addr", cfg.LedgerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
