package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vizzzzk/nifty-options-bot/internal/cli"
	"github.com/vizzzzk/nifty-options-bot/internal/config"
	"github.com/vizzzzk/nifty-options-bot/internal/logging"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment or the config file.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
