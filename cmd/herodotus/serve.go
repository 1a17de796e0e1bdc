package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/gateway"
	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/internal/server"
)

var (
	serveAddr      string
	serveHeartbeat time.Duration
	serveNoChat    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the enabled chat gateways",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		observability.PrintBanner()
		return withService(func(svc *app.Service) error {
			cfg := svc.Config()
			logger := svc.Logger().Zap()

			addr := cfg.Server.Addr
			if serveAddr != "" {
				addr = serveAddr
			}

			var gateways []gateway.Messenger
			if !serveNoChat {
				var err error
				gateways, err = gateway.FromConfig(cfg, svc, logger)
				if err != nil {
					return err
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return server.New(svc, logger).Serve(ctx, addr)
			})
			for _, gw := range gateways {
				logger.Info("starting gateway", zap.String("gateway", gw.Name()))
				g.Go(func() error { return gw.Start(ctx) })
			}
			if serveHeartbeat > 0 {
				g.Go(func() error { return svc.Heartbeat(ctx, serveHeartbeat) })
			}

			return g.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().DurationVar(&serveHeartbeat, "heartbeat", 30*time.Second, "liveness heartbeat interval")
	serveCmd.Flags().BoolVar(&serveNoChat, "no-chat", false, "do not start chat gateways")
}
