package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumengallery/lumen/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gallery backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}
