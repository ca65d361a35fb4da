package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/fieldtools/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the camera API and web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Web.Port = port
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv, err := web.NewServer(a.cfg.Addr(), a.cameras, web.NewChangeBroadcaster(), web.DOFDefaults{
				FocalLengthMm: a.cfg.Defaults.FocalLengthMm,
				Aperture:      a.cfg.Defaults.Aperture,
				DistanceM:     a.cfg.Defaults.DistanceM,
			}, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Web UI: http://localhost%s\n", a.cfg.Addr())
			if err := srv.Run(ctx); err != nil && err != context.Canceled {
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}
