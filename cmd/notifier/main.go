package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzen/internal/config"
	ledgerrpc "finanzen/internal/ledger/httprpc"
	"finanzen/internal/log"
	"finanzen/internal/mail"
	"finanzen/internal/services"
	usersrpc "finanzen/internal/users/httprpc"
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

	ledgerClient := ledgerrpc.NewClient(cfg.LedgerBaseURL, cfg.RPCTimeout, logger)
	usersClient := usersrpc.NewClient(cfg.UserBaseURL, cfg.RPCTimeout, logger)
	selector := services.NewDueSelector(ledgerClient, usersClient, logger)

	var mailer services.Mailer
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom)
		logger.Info("SMTP mailer initialized", "addr", cfg.SMTPAddr)
	} else {
		mailer = mail.NewLogMailer(logger)
		logger.Info("No SMTP relay configured, reminders will be logged")
	}

	notifier := services.NewGoalNotifier(selector, mailer, services.GoalNotifierConfig{
		Interval: cfg.NotifyInterval,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := notifier.Start(ctx); err != nil {
		logger.Error("Failed to start notifier", log.FieldError, err.Error())
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := notifier.Stop(stopCtx); err != nil {
		logger.Error("Notifier shutdown error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Notifier stopped gracefully")
}
