package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alvarorichard/Gostream/internal/server"
	"github.com/alvarorichard/Gostream/pkg/gostream"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolver over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			client, err := gostream.NewClient(*cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = server.ListenAndServe(ctx, cfg.Server.Addr, server.NewHandler(client))
			writePerfReport(cmd, cfg.Perf)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
