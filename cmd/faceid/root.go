package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/internal/vision"
)

var (
	configPath string
	cfg        *config.Config
	// db is opened for every subcommand and closed after it.
	db *storage.PostgresStore
)

var rootCmd = &cobra.Command{
	Use:           "faceid",
	Short:         "Face enrollment and recognition administration",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		observability.SetupLogger(cfg.Logging.Level, "text")

		db, err = storage.NewPostgresStore(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (env overrides still apply)")
}

// openExtractor loads the configured face extractor.
func openExtractor() (vision.Extractor, error) {
	x, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("init face extractor: %w", err)
	}
	return x, nil
}

// openObjects connects to MinIO when an endpoint is configured; nil otherwise.
func openObjects(ctx context.Context) (*storage.MinIOStore, error) {
	if cfg.MinIO.Endpoint == "" {
		return nil, nil
	}
	s, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return s, nil
}
