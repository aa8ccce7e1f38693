package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Opacus-xyz/Opacus/relay"
)

func newRelayCmd() *cobra.Command {
	var (
		port        int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server, err := relay.NewServer(port)
			if err != nil {
				return err
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := server.Stop(); err != nil {
					logrus.WithError(err).Warn("Relay shutdown error")
				}
			}()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(server.Registry(),
					promhttp.HandlerOpts{}))
				go func() {
					logrus.WithField("addr", metricsAddr).Info("Serving metrics")
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logrus.WithError(err).Warn("Metrics server stopped")
					}
				}()
			}

			<-ctx.Done()
			logrus.Info("Shutting down relay server")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 4242, "UDP port to listen on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"optional address for Prometheus metrics, e.g. :9090")
	return cmd
}
