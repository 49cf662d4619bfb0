package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"dapi-grpc/middleware"
	"dapi-grpc/registry"
	"dapi-grpc/server"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen, fixtures, advertise, version, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Platform service from a fixture file",
		Long: `Serves the Platform service from YAML fixtures, for testing clients
without a DAPI node. With a registry configured the server announces itself
under the registry service name until it stops. With --metrics-addr the
handled calls are exported for Prometheus on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg.Server
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if fixtures != "" {
				cfg.Fixtures = fixtures
			}
			if advertise != "" {
				cfg.Advertise = advertise
			}
			if version != "" {
				cfg.Version = version
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}

			impl := server.NewFixtures()
			if cfg.Fixtures != "" {
				loaded, err := server.LoadFixtures(cfg.Fixtures)
				if err != nil {
					return err
				}
				impl = loaded
			}

			lis, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
			}

			opts := []server.Option{
				server.WithLogger(g.logger),
				server.WithVersion(cfg.Version),
				server.WithUnaryInterceptors(middleware.NewMetrics(g.metrics, "server").UnaryServerInterceptor()),
			}
			if len(g.cfg.Registry.Endpoints) > 0 {
				reg, err := registry.NewEtcdRegistry(g.cfg.Registry.Endpoints, g.logger)
				if err != nil {
					_ = lis.Close()
					return err
				}
				defer reg.Close()

				addr := cfg.Advertise
				if addr == "" {
					addr = lis.Addr().String()
				}
				opts = append(opts, server.WithRegistry(reg, g.cfg.Registry.Service, addr))
			}
			svr := server.NewServer(impl, opts...)

			var metricsSrv *http.Server
			var metricsLis net.Listener
			if cfg.MetricsAddr != "" {
				metricsLis, err = net.Listen("tcp", cfg.MetricsAddr)
				if err != nil {
					_ = lis.Close()
					return fmt.Errorf("listen on %s: %w", cfg.MetricsAddr, err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(g.metrics, promhttp.HandlerOpts{
					ErrorHandling: promhttp.HTTPErrorOnError,
				}))
				metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				g.logger.Info("serving metrics", zap.String("addr", metricsLis.Addr().String()))
			}

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				return svr.Serve(lis)
			})
			if metricsSrv != nil {
				eg.Go(func() error {
					if err := metricsSrv.Serve(metricsLis); !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
			}
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				err := svr.Shutdown(shutdownCtx)
				if metricsSrv != nil {
					err = multierr.Append(err, metricsSrv.Shutdown(shutdownCtx))
				}
				return err
			})
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":3010", "listen address")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML fixture file")
	cmd.Flags().StringVar(&advertise, "advertise", "", "address announced in the registry, defaults to the listen address")
	cmd.Flags().StringVar(&version, "version", "", "protocol version announced in the registry")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
