package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbonduro/exifedit/internal/db"
	"github.com/vbonduro/exifedit/internal/library"
	"github.com/vbonduro/exifedit/internal/photostore/local"
	"github.com/vbonduro/exifedit/internal/service"
	"github.com/vbonduro/exifedit/internal/store"
	"github.com/vbonduro/exifedit/internal/web"
	"github.com/vbonduro/exifedit/internal/web/templates"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Index the photo library and serve the tag editor",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Listen address (overrides LISTEN_ADDR)")
	cmd.Flags().Bool("no-watch", false, "Do not watch the photo directory for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger := env.cfg, env.logger
	ctx := cmd.Context()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.WatchLibrary = false
	}

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

	codec, err := newCodec(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCodec(codec, logger)

	images := store.NewImageStore(database)
	scanner := library.NewScanner(photos, images, logger)
	if _, err := scanner.Scan(ctx); err != nil {
		return fmt.Errorf("initial library scan failed: %w", err)
	}

	svc := service.NewTagService(images, photos, codec, scanner, logger)
	server := web.NewServer(svc, templates.FS, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.ListenAddr)
	})
	if cfg.WatchLibrary {
		watcher := library.NewWatcher(photos.Root(), scanner, cfg.WatchDebounce, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}
