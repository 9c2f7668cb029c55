// Package main runs the ReelPay ledger server: platform treasuries,
// account balances, the item catalog and the purchase transaction log
// behind a REST API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/reelpay/ledger/internal/app/runtime"
	"github.com/reelpay/ledger/internal/config"
	"github.com/reelpay/ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/ledger.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; real env vars win.
	_ = godotenv.Load()

	if v := os.Getenv("LEDGER_CONFIG"); v != "" {
		*configPath = v
	}

	log := logger.NewDefault("ledgerd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := runtime.NewApplication(cfg)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server error")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	log.Info("ledger server stopped")
}
