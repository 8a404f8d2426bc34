package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/querier/internal/config"
	"github.com/roach88/querier/internal/decl"
	"github.com/roach88/querier/internal/metrics"
	"github.com/roach88/querier/internal/server"
	"github.com/roach88/querier/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigFile string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	v := config.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve declared resources over HTTP",
		Long: `Serve every declaration in the resources directory as GET /<name>,
where <name> is the file name without its extension. Declarations are
reloaded when their files change.

Configuration comes from defaults, an optional --config file, QUERIER_*
environment variables and flags, in increasing precedence.

Example:
  querier serve --db ./people.db --resources ./resources
  QUERIER_LOG_FORMAT=json querier serve --config ./querier.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, v, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("addr", ":8080", "listen address")
	flags.String("db", "querier.db", "path to SQLite database")
	flags.String("resources", "resources", "directory of resource declarations")
	flags.String("tie-breaker", "", "stable-order column for resources that declare none")

	for key, flag := range map[string]string{
		"server.addr":    "addr",
		"db.path":        "db",
		"resources.dir":  "resources",
		"db.tie_breaker": "tie-breaker",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func runServe(opts *ServeOptions, v *viper.Viper, cmd *cobra.Command) error {
	cfg, err := config.Load(v, opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	if _, err := os.Stat(cfg.DB.Path); err != nil {
		logger.Warn("database file does not exist, creating it", "path", cfg.DB.Path)
	}
	st, err := store.Open(cfg.DB.Path, store.WithTieBreaker(cfg.DB.TieBreaker))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	resources, err := server.WatchDir(cfg.Resources.Dir,
		decl.WithDebounce(cfg.Resources.Debounce),
		decl.WithWatcherLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load resources", err)
	}
	logger.Info("resources loaded", "dir", cfg.Resources.Dir, "routes", resources.Names())

	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithTieBreaker(cfg.DB.TieBreaker),
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srvOpts = append(srvOpts, server.WithMetrics(metrics.New(reg), reg, cfg.Metrics.Path))
	}
	srv := server.New(st, resources, srvOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d resource(s) on %s\n", len(resources), cfg.Server.Addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return resources.Run(ctx)
	})
	g.Go(func() error {
		return srv.Run(ctx, cfg.Server.Addr)
	})
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
