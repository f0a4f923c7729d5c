package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/mq/worker"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/internal/supervisor"
	"github.com/okian/podium/internal/telemetry"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 45 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "podium",
		Usage: "tournament standings from registration sheets and live match placements",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"PODIUM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			refreshCommand(),
			checkCommand(),
		},
	}
}

// loadConfig reads the config file named by --config and applies the log
// level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.Context, c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(c.Context, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, refresh workers and scheduler",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	stopTracing, err := startTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	svc, err := service.New(ctx, cfg, service.WithLogger(log.Named("service")))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	apiServer := api.NewServer(svc, svc,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRefreshRateLimit(cfg.RefreshRateLimit),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	tree := supervisor.NewTree(logger.Slog(), cfg.Supervisor)
	tree.AddRefreshService(supervisor.NewDrainable("refresh-pool", svc.Pool().Serve, worker.ErrQueueDrained))
	tree.AddRefreshService(svc.Scheduler())
	tree.AddAPIService(supervisor.NewHTTPService(srv, shutdownTimeout))

	// The tree outlives ctx so queued refreshes drain before the API stops.
	treeCtx, cancelTree := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTree()
	done := tree.ServeBackground(treeCtx)
	go reportSystemMetrics(treeCtx)

	log.Info(ctx, "podium started",
		logger.String("addr", cfg.Addr),
		logger.Int("tournaments", len(cfg.Tournaments)),
	)

	select {
	case <-ctx.Done():
	case err := <-done:
		_ = svc.Stop(context.WithoutCancel(ctx))
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	log.Info(ctx, "shutting down...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := svc.Stop(stopCtx); err != nil {
		errs = append(errs, err)
	}
	cancelTree()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		log.Warn(ctx, "services did not stop in time", logger.Int("count", len(report)))
	}
	log.Info(ctx, "podium stopped")
	return errors.Join(errs...)
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "refresh one tournament and print its scoreboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tournament", Aliases: []string{"t"}, Usage: "tournament id", Required: true},
			&cli.StringFlag{Name: "round", Aliases: []string{"r"}, Usage: `round id or "latest"`, Value: standings.LatestRound},
			&cli.BoolFlag{Name: "live", Usage: "look up live match placements", Value: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return refresh(c.Context, cfg, c.App.Writer, c.String("tournament"), c.String("round"), c.Bool("live"))
		},
	}
}

func refresh(ctx context.Context, cfg *config.Config, w io.Writer, id, round string, live bool) error {
	if round == standings.LatestRound {
		round = ""
	}
	stopTracing, err := startTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

	snap, err := svc.Refresh(ctx, id, round, live)
	var rff *standings.RosterFetchFailure
	switch {
	case err == nil:
	case errors.As(err, &rff) && rff.Last != nil:
		board := types.NewScoreboard(rff.Last, time.Now())
		board.Message = rff.Message()
		_ = writeScoreboard(w, board)
		return err
	default:
		return err
	}
	return writeScoreboard(w, types.NewScoreboard(snap, time.Now()))
}

// startTracing installs the configured tracer provider. The returned func
// flushes spans still buffered.
func startTracing(ctx context.Context, cfg *config.Config) (func(), error) {
	shutdown, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return func() {}, fmt.Errorf("setup tracing: %w", err)
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Get().Warn(ctx, "flush traces failed", logger.Error(err))
		}
	}, nil
}

func writeScoreboard(w io.Writer, board types.Scoreboard) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(board)
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "validate the configuration and list tournaments",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			for id, t := range cfg.Tournaments {
				fmt.Fprintf(c.App.Writer, "%s\tregion=%s\tauto_refresh=%t\n", id, t.Region, t.AutoRefresh)
			}
			fmt.Fprintf(c.App.Writer, "configuration ok (%d tournaments)\n", len(cfg.Tournaments))
			return nil
		},
	}
}

// reportSystemMetrics samples runtime stats until ctx ends.
func reportSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
