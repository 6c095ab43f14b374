package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anibridge/plex-provider/internal/config"
	"github.com/anibridge/plex-provider/internal/provider"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aniplex",
	Short: "Plex library provider for Anibridge",
	Long: `aniplex - Plex library provider for Anibridge

Inspect the Plex session a configured provider would resolve, list its
library sections and items, and serve its webhook endpoint.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config file")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("aniplex {{.Version}}\n")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadProvider builds an uninitialized provider from the config file.
func loadProvider() (*provider.Provider, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	p := provider.New(provider.Config{
		URL:      cfg.Plex.URL,
		Token:    cfg.Plex.Token,
		User:     cfg.Plex.User,
		Sections: cfg.Plex.Sections,
		Genres:   cfg.Plex.Genres,
	}, logger)
	return p, logger, nil
}
