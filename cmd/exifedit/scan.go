package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbonduro/exifedit/internal/db"
	"github.com/vbonduro/exifedit/internal/library"
	"github.com/vbonduro/exifedit/internal/photostore/local"
	"github.com/vbonduro/exifedit/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index the photo library once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := env.cfg, env.logger

		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()

		photos, err := local.NewLocalPhotoStore(cfg.PhotoPath)
		if err != nil {
			return fmt.Errorf("failed to initialize photo store: %w", err)
		}

		res, err := library.NewScanner(photos, store.NewImageStore(database), logger).Scan(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d images, removed %d\n", res.Indexed, res.Removed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
