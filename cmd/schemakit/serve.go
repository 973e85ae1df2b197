package main

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/internal/engine"
	"github.com/schemakit/schemakit/internal/web/api"
	"github.com/schemakit/schemakit/internal/web/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serve schema views, record CRUD, listings, and nested relationship listings over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := newLogger(cfg.Debug)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		eng, err := engine.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		mux := chi.NewRouter()
		mux.Mount(cfg.Server.APIPrefix, api.NewHandler(eng, log).Routes())

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv, err := server.New(server.DefaultConfig(addr, mux), log)
		if err != nil {
			return err
		}
		srv.OnShutdown(func(ctx context.Context) error {
			return eng.Connections().Close()
		})

		return srv.Run()
	},
}
