package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

var (
	importLegacyVersion string
	importDryRun        bool
)

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import user documents exported from the old document store",
	Long: `Reads a JSON array or JSON lines of user documents and stores each as an
identity. Documents whose user_id already exists are skipped. Documents without
embedding_version are tagged with --legacy-version; untagged legacy embeddings
never match a probe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		stats, err := importDocuments(cmd.Context(), r, db, storage.DecodeOptions{
			LegacyVersion: importLegacyVersion,
			Now:           time.Now().UTC(),
		}, importDryRun)
		if err != nil {
			return err
		}
		fmt.Printf("\nImported %d, skipped %d existing, %d invalid\n", stats.imported, stats.existing, stats.invalid)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importLegacyVersion, "legacy-version", "",
		"embedding version for documents without one (e.g. dlib-resnet-v1)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "decode and validate only")
	rootCmd.AddCommand(importCmd)
}

type importStore interface {
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	CreateIdentity(ctx context.Context, identity *models.Identity) error
}

type importStats struct {
	imported int
	existing int
	invalid  int
}

// importDocuments stores every decodable document whose identity does not
// exist yet. Invalid documents are logged and counted; store failures abort.
func importDocuments(ctx context.Context, r io.Reader, store importStore, opts storage.DecodeOptions, dryRun bool) (importStats, error) {
	var stats importStats
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Importing documents"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSetWriter(os.Stderr),
	)
	defer func() { _ = bar.Finish() }()

	err := storage.ReadDocuments(r, func(raw json.RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = bar.Add(1)

		identity, err := storage.DecodeDocument(raw, opts)
		if err != nil {
			stats.invalid++
			level := slog.LevelWarn
			if errors.Is(err, storage.ErrEmptyDocument) {
				level = slog.LevelInfo
			}
			slog.Log(ctx, level, "skipping document", "error", err)
			return nil
		}

		existing, err := store.GetIdentity(ctx, identity.ID)
		if err != nil {
			return fmt.Errorf("look up %s: %w", identity.ID, err)
		}
		if existing != nil {
			stats.existing++
			return nil
		}
		if dryRun {
			stats.imported++
			return nil
		}
		if err := store.CreateIdentity(ctx, identity); err != nil {
			return fmt.Errorf("store %s: %w", identity.ID, err)
		}
		stats.imported++
		return nil
	})
	return stats, err
}
