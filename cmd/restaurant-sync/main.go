// Command restaurant-sync drives the offline-first restaurant engine from a terminal:
// browse restaurants and reviews, toggle favorites, add reviews and replay the queue.
//
// Configuration is read from ~/.restaurant-sync/config.toml (or --config), then from a
// .env file and the RESTAURANT_SYNC_BASE_URL and RESTAURANT_SYNC_DSN variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goliatone/go-restaurant-sync/pkg/di"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultDatabase = "restaurants.db"

type options struct {
	configFile string
	offline    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "restaurant-sync",
		Short:         "Offline-first restaurant review client",
		Long:          "Browse restaurants and reviews from a local cache, and queue favorites and reviews while offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ~/.restaurant-sync/config.toml)")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "start in offline mode: writes are queued, not sent")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRestaurantsCmd(opts),
		newReviewsCmd(opts),
		newFavoriteCmd(opts),
		newSyncCmd(opts),
		newPendingCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// configDir returns ~/.restaurant-sync, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".restaurant-sync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

func (o *options) configPath() (string, error) {
	if o.configFile != "" {
		return o.configFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads the config file and applies environment overrides. An in-memory DSN is
// replaced by a database file next to the config file so queued writes survive the process.
func (o *options) loadConfig() (di.Config, error) {
	path, err := o.configPath()
	if err != nil {
		return di.Config{}, err
	}
	cfg, err := di.LoadConfig(path)
	if err != nil {
		return di.Config{}, err
	}

	di.ApplyEnv(&cfg, os.LookupEnv)
	if cfg.Store.DSN == di.DefaultConfig().Store.DSN {
		cfg.Store.DSN = filepath.Join(filepath.Dir(path), defaultDatabase)
	}
	if o.offline {
		cfg.Online = false
	}
	return cfg, nil
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openContainer builds the engine for one command. The caller closes it.
func (o *options) openContainer(cmd *cobra.Command) (*di.Container, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return di.NewContainer(cmd.Context(), cfg, di.WithLogger(o.logger(cmd.ErrOrStderr())))
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
