package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/config"
	"github.com/divijg19/lakecross/internal/server"
	"github.com/divijg19/lakecross/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr string
		from string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analytics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if addr == "" {
				addr = config.DefaultServerAddr
			}

			src, closeSrc, err := a.analyticsSource(ctx, from)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeSrc()

			svc := analytics.NewService(src, a.cfg.Rules.OptimalCrossings,
				analytics.WithFetchTimeout(config.FetchTimeout(a.cfg)),
				analytics.WithLogger(a.logger),
			)

			// Session listings are served only from the local store.
			var sessions server.SessionReader
			if st, ok := src.(*storage.Store); ok {
				sessions = st
			}

			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			return server.Run(ctx, addr, server.New(svc, sessions, a.logger), a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "serve analytics from an NDJSON file or gs://bucket/object")
	return cmd
}
