package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/etnz/loandash/api"
	"github.com/etnz/loandash/web"
)

type healthCmd struct{}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "check that the backend is up" }
func (*healthCmd) Usage() string {
	return `ldash health

Calls the backend root and prints its status.
`
}

func (c *healthCmd) SetFlags(f *flag.FlagSet) {}

func (c *healthCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	h, err := a.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Backend %s is unreachable: %v\n", a.client.BaseURL(), err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%s %s %s: %s\n", a.client.BaseURL(), h.Service, h.Version, h.Status)
	return subcommands.ExitSuccess
}

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the dashboard in a browser" }
func (*serveCmd) Usage() string {
	return `ldash serve [-addr <host:port>]

Serves the dashboard over HTTP for the stored session, with /metrics for
Prometheus. Logs are JSON on stderr at the configured level.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, overrides the configuration")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}
	zc := zap.NewProductionConfig()
	if zc.Level, err = zap.ParseAtomicLevel(cfg.Logging.Level); err != nil {
		fmt.Fprintf(stderr, "Error: invalid log level %q\n", cfg.Logging.Level)
		return subcommands.ExitUsageError
	}
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	a, err := wire(cfg, logger, api.NewMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	logger.Info("configuration loaded",
		zap.String("backend", cfg.Backend.URL),
		zap.String("session", a.store.Path()),
		zap.Bool("public", cfg.Session.Public))

	srv := web.New(a.client, a.store, web.Options{
		Public:      cfg.Session.Public,
		FlashTTL:    cfg.Server.FlashTTL,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})
	fmt.Fprintf(stderr, "Dashboard on http://%s\n", cfg.Server.Addr)
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
