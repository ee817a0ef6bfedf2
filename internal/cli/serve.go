package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/projector/internal/server"
	"github.com/matzehuels/projector/pkg/cache"
	"github.com/matzehuels/projector/pkg/pipeline"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr         string
		backend      string
		url          string
		solveTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP solve API",
		Long: `Run the HTTP solve API.

Routes:
  GET  /healthz     liveness and build info
  POST /v1/solve    solve a projection problem
  POST /v1/nudge    solve a nudging problem

Results are cached in the configured backend. Redis and MongoDB let several
server instances share one cache:

  projector serve --cache redis --cache-url redis://localhost:6379/0
  projector serve --cache mongo --cache-url mongodb://localhost:27017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if solveTimeout > 0 {
				cfg.Server.SolveTimeout = solveTimeout
			}
			if backend != "" {
				cfg.Cache.Backend = backend
			}
			if url != "" {
				cfg.Cache.URL = url
			}
			c.Config = cfg
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+server.DefaultAddr+")")
	cmd.Flags().StringVar(&backend, "cache", "", "cache backend: file, redis, mongo, none")
	cmd.Flags().StringVar(&url, "cache-url", "", "redis or mongodb connection URL")
	cmd.Flags().DurationVar(&solveTimeout, "solve-timeout", 0, "maximum solve time per request")
	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	store, err := c.openCache(ctx, false)
	if err != nil {
		return err
	}
	if mc, ok := store.(*cache.MongoCache); ok {
		if err := mc.EnsureIndexes(ctx); err != nil {
			c.Logger.Warn("could not create cache indexes", "error", err)
		}
	}
	if rc, ok := store.(*cache.RedisCache); ok {
		if err := rc.Ping(ctx); err != nil {
			store.Close()
			return fmt.Errorf("redis cache: %w", err)
		}
	}

	runner := pipeline.NewRunner(store, nil, c.Logger)
	defer runner.Close()

	c.Logger.Info("starting server", "cache", c.Config.Cache.Backend)
	return server.New(c.Config.Server, runner, c.Logger).Run(ctx)
}
