// Package cmd implements the dapictl commands.
package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"dapi-grpc/client"
	"dapi-grpc/codec"
	"dapi-grpc/config"
	"dapi-grpc/loadbalance"
	"dapi-grpc/logging"
	"dapi-grpc/middleware"
	"dapi-grpc/registry"
	"dapi-grpc/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials"
)

var errNoTarget = errors.New("no DAPI node configured: set --address, [client] address, or a registry")

// globalOptions holds the persistent flags and what is derived from them before a
// command runs.
type globalOptions struct {
	configFile  string
	address     string
	metadata    map[string]string
	logLevel    string
	registry    []string
	metricsFile string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *prometheus.Registry
	calls   *middleware.Metrics
	pool    *transport.Pool
	creds   credentials.TransportCredentials
}

// NewRootCmd builds the dapictl command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "dapictl",
		Short: "Query the Platform service of a DAPI node",
		Long: `dapictl calls the Platform gRPC service of a DAPI node and prints the
responses as JSON. Binary arguments are hex, or base64 with a "base64:" prefix.

Examples:
  dapictl --address https://seed-1.testnet.networks.dash.org:1443 get-identity <id>
  dapictl --registry 127.0.0.1:2379 get-documents <contract-id> note --limit 10
  dapictl decode getIdentity --response --format grpc-web-text < body.txt
  dapictl serve --fixtures fixtures.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "TOML config file")
	flags.StringVar(&g.address, "address", "", "DAPI node address, overrides the config file")
	flags.StringToStringVar(&g.metadata, "metadata", nil, "request header as key=value, repeatable")
	flags.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringSliceVar(&g.registry, "registry", nil, "etcd endpoints used to discover nodes")
	flags.StringVar(&g.metricsFile, "metrics-file", "", "write call metrics in Prometheus text format to this file on exit")

	root.AddCommand(
		newApplyStateTransitionCmd(g),
		newGetIdentityCmd(g),
		newGetDataContractCmd(g),
		newGetDocumentsCmd(g),
		newGetIdentityByKeyCmd(g),
		newGetIdentityIdByKeyCmd(g),
		newNodesCmd(g),
		newDecodeCmd(g),
		newServeCmd(g),
	)
	return root
}

// Execute runs dapictl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (g *globalOptions) load() error {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return err
	}
	if g.address != "" {
		cfg.Client.Address = g.address
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if len(g.registry) > 0 {
		cfg.Registry.Endpoints = g.registry
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	g.cfg, g.logger = cfg, logger
	g.metrics = prometheus.NewRegistry()
	g.calls = middleware.NewMetrics(g.metrics, "client")
	return nil
}

// connPool returns the pool every connection of this invocation goes through.
func (g *globalOptions) connPool() (*transport.Pool, error) {
	if g.pool != nil {
		return g.pool, nil
	}
	creds, err := g.cfg.Client.TransportCredentials()
	if err != nil {
		return nil, err
	}
	cfg := transport.DefaultConfig("")
	cfg.Credentials = creds
	g.pool, g.creds = transport.NewPool(cfg), creds
	return g.pool, nil
}

// release closes pooled connections and writes the metrics file, if one was requested.
func (g *globalOptions) release() error {
	var err error
	if g.pool != nil {
		err = g.pool.Close()
		g.pool = nil
	}
	if g.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(g.metricsFile, g.metrics); werr != nil {
			err = multierr.Append(err, fmt.Errorf("write metrics to %s: %w", g.metricsFile, werr))
		}
	}
	return err
}

func (g *globalOptions) interceptors() []middleware.Interceptor {
	interceptors := []middleware.Interceptor{
		middleware.TracingMiddleware(otel.GetTracerProvider()),
		middleware.LoggingMiddleware(g.logger),
		g.calls.Middleware(),
		middleware.RequestIDMiddleware(),
	}
	if g.cfg.Client.RateLimit > 0 {
		interceptors = append(interceptors, middleware.RateLimitMiddleware(g.cfg.Client.RateLimit, g.cfg.Client.RateBurst))
	}
	if d := g.cfg.Client.Timeout.Duration; d > 0 {
		interceptors = append(interceptors, middleware.TimeoutMiddleware(d))
	}
	return interceptors
}

// dial connects to the configured address, or to a node picked from the registry.
// With the consistent_hash balancer, key decides the node.
func (g *globalOptions) dial(ctx context.Context, key string) (*client.Client, error) {
	pool, err := g.connPool()
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithCredentials(g.creds),
		client.WithDialer(client.PoolDialer(pool)),
		client.WithLogger(g.logger),
		client.WithInterceptors(g.interceptors()...),
	}

	if g.cfg.Client.Address != "" {
		return client.New(g.cfg.Client.Address, opts...)
	}

	reg, closeRegistry, err := g.openRegistry(ctx)
	if err != nil {
		return nil, err
	}
	defer closeRegistry()

	var bal loadbalance.Balancer
	if g.cfg.Registry.Balancer == "consistent_hash" {
		bal = loadbalance.Keyed(loadbalance.NewConsistentHashBalancer(), key)
	} else if bal, err = loadbalance.New(g.cfg.Registry.Balancer); err != nil {
		return nil, err
	}
	return client.NewFromRegistry(ctx, reg, bal, g.cfg.Registry.Service, opts...)
}

func (g *globalOptions) openRegistry(ctx context.Context) (registry.Registry, func(), error) {
	switch {
	case len(g.cfg.Registry.Endpoints) > 0:
		reg, err := registry.NewEtcdRegistry(g.cfg.Registry.Endpoints, g.logger)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() { _ = reg.Close() }, nil
	case len(g.cfg.Registry.Nodes) > 0:
		reg := registry.NewStaticRegistry()
		for _, addr := range g.cfg.Registry.Nodes {
			if err := reg.Register(ctx, g.cfg.Registry.Service, registry.ServiceInstance{Addr: addr, Weight: 1}, 0); err != nil {
				return nil, nil, err
			}
		}
		return reg, func() {}, nil
	default:
		return nil, nil, errNoTarget
	}
}

// callOptions attaches the configured headers, with --metadata taking precedence.
func (g *globalOptions) callOptions() []client.CallOption {
	md := client.Metadata{}
	for k, v := range g.cfg.Client.Metadata {
		md[k] = v
	}
	for k, v := range g.metadata {
		md[k] = v
	}
	return []client.CallOption{client.WithMetadata(md)}
}

// runCall dials, runs one Platform method and prints the response. key routes the
// call when nodes are picked by consistent hashing.
func runCall[Req, Resp any](cmd *cobra.Command, g *globalOptions, key string, call func(*client.Client, context.Context, Req, ...client.CallOption) (Resp, error), req Req) (err error) {
	defer func() { err = multierr.Append(err, g.release()) }()

	ctx := cmd.Context()
	c, err := g.dial(ctx, key)
	if err != nil {
		return err
	}

	resp, err := call(c, ctx, req, g.callOptions()...)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func printJSON(w io.Writer, v any) error {
	data, err := codec.GetCodec(codec.CodecTypeJSON).Encode(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

// parseBytes reads a hex argument, or base64 when prefixed with "base64:".
func parseBytes(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 %q: %w", rest, err)
		}
		return b, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
