package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/showtimes/internal/app"
	"github.com/JakeFAU/showtimes/internal/config"
)

type contextKey string

const configKey contextKey = "config"

// newApp is the application factory. Tests replace it to observe the
// configuration a command builds with.
var newApp = app.Build

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "showtimes",
		Short: "Scrapes movie showtime listings and serves them as JSON.",
		Long: `showtimes crawls a paginated movie listings site for a location and day,
normalizes the showtimes it finds, and caches the result until local midnight.
Run "showtimes serve" for the HTTP API or "showtimes crawl" for a one-off query.`,
		SilenceUsage: true,

		// Config is loaded here so every subcommand sees the same view of
		// file, .env, and environment settings.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json, or toml)")
	cmd.AddCommand(newServeCmd(), newCrawlCmd())
	return cmd
}

// startApp builds the application from the loaded config after applying
// overrides. Callers own the returned app and must Close it.
func startApp(cmd *cobra.Command, override func(*config.Config)) (*app.App, error) {
	cfg, ok := cmd.Context().Value(configKey).(config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
