package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remobridge/internal/account"
	"remobridge/internal/api"
	"remobridge/internal/clock"
	"remobridge/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const setupTimeout = 30 * time.Second

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting remobridge",
		zap.Int("accounts", len(cfg.Accounts)),
		zap.String("listen_addr", cfg.ListenAddr))

	clk := clock.NewReal()

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), setupTimeout)
	defer cancelSetup()

	accounts := make([]*account.Account, 0, len(cfg.Accounts))
	for _, acctCfg := range cfg.Accounts {
		acct, err := account.Setup(setupCtx, acctCfg, clk, logger)
		if err != nil {
			// Each setup failure class gets its own operator-facing message.
			switch {
			case errors.Is(err, account.ErrCannotConnect):
				logger.Fatal("Cannot connect to the Nature Remo API, check REMO_HOST and network",
					zap.Error(err))
			case errors.Is(err, account.ErrInvalidAuth):
				logger.Fatal("Access token rejected, generate a new one at https://home.nature.global",
					zap.Error(err))
			default:
				logger.Fatal("Account setup failed unexpectedly", zap.Error(err))
			}
		}
		accounts = append(accounts, acct)
	}

	server := api.NewServer(accounts, logger, cfg.ListenAddr)
	server.Start()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bridge running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	for _, acct := range accounts {
		acct.Close()
	}
}

// loadConfig prefers the YAML file named by CONFIG_PATH and falls back to a
// single account synthesized from environment variables
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}
