package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// nodeStatus is one line of the nodes output.
type nodeStatus struct {
	Addr    string `json:"addr"`
	Version string `json:"version,omitempty"`
	Weight  int    `json:"weight"`
	State   string `json:"state"`
}

func newNodesCmd(g *globalOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the announced DAPI nodes and whether they accept connections",
		Long: `Lists the nodes found in the etcd registry, or the static [registry] nodes,
and connects to each of them. State is READY when the node accepted the
connection and TRANSIENT_FAILURE when it did not.

Examples:
  dapictl --registry 127.0.0.1:2379 nodes
  dapictl --config dapi.toml nodes --timeout 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() { err = multierr.Append(err, g.release()) }()

			ctx := cmd.Context()
			reg, closeRegistry, err := g.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeRegistry()

			instances, err := reg.Discover(ctx, g.cfg.Registry.Service)
			if err != nil {
				return err
			}
			pool, err := g.connPool()
			if err != nil {
				return err
			}

			nodes := make([]nodeStatus, len(instances))
			eg, egCtx := errgroup.WithContext(ctx)
			for i, inst := range instances {
				eg.Go(func() error {
					connectCtx, cancel := context.WithTimeout(egCtx, timeout)
					defer cancel()
					state, err := pool.Connect(connectCtx, inst.Addr)
					if err != nil {
						return err
					}
					nodes[i] = nodeStatus{Addr: inst.Addr, Version: inst.Version, Weight: inst.Weight, State: state.String()}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			g.logger.Debug("nodes checked", zap.Int("connections", pool.Len()))
			return printJSON(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for each node")
	return cmd
}
