package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/pkg/config"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

// Files tried in order when --config is not given.
var defaultConfigFiles = []string{"config.yaml", "config.yml", "config.json"}

var rootCmd = &cobra.Command{
	Use:          "herodotus",
	Short:        "Multi-agent pipeline engine",
	Long:         `herodotus runs tasks through a pipeline of capability units (rag, tool, memory, router, reasoning) and combines their answers.`,
	SilenceUsage: true,
	Version:      version,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	for _, name := range defaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return config.LoadConfig(name)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return config.Default(), nil
}

// withService opens the service for the duration of fn.
func withService(fn func(svc *app.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := observability.NewLogger(observability.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LLMLog: cfg.Logging.LLMLog,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	svc, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(svc)
}
