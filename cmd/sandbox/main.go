package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/internal/sandbox"
	"github.com/okian/podium/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "sandbox",
		Usage: "serve a fake registration sheet and placement API for local runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":9090", Usage: "listen address"},
			&cli.StringFlag{Name: "tournament", Value: "spring-cup", Usage: "tournament id"},
			&cli.StringFlag{Name: "region", Value: "euw1", Usage: "platform region"},
			&cli.IntFlag{Name: "players", Value: 32, Usage: "number of registered players"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "fixture seed"},
			&cli.DurationFlag{Name: "round-every", Value: 2 * time.Minute, Usage: "play a new round this often; 0 plays one round"},
			&cli.BoolFlag{Name: "settle", Usage: "copy each finished round onto the sheet"},
			&cli.StringFlag{Name: "api-key", Usage: "require this key on placement lookups"},
			&cli.Float64Flag{Name: "fault-rate", Usage: "fraction of lookups answering 503"},
			&cli.Float64Flag{Name: "throttle-rate", Usage: "fraction of lookups answering 429"},
			&cli.DurationFlag{Name: "latency", Usage: "delay added to every lookup"},
		},
		Action: run,
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := c.Context
	log := logger.Get().Named("sandbox")
	table := scoring.DefaultTable()

	tour := sandbox.Generate(c.Uint64("seed"), c.String("tournament"), c.String("region"), c.Int("players"))
	opts := []sandbox.Option{
		sandbox.WithSeed(c.Uint64("seed")),
		sandbox.WithFaultRate(c.Float64("fault-rate")),
		sandbox.WithThrottleRate(c.Float64("throttle-rate"), time.Second),
		sandbox.WithLatency(c.Duration("latency")),
	}
	if key := c.String("api-key"); key != "" {
		opts = append(opts, sandbox.WithAPIKey("X-Api-Key", key))
	}
	sb := sandbox.NewServer([]*sandbox.Tournament{tour}, opts...)

	play := func() {
		round := tour.PlayRound(table)
		if c.Bool("settle") {
			tour.Settle(round, table)
		}
		log.Info(ctx, "round played", logger.String("tournament", tour.ID), logger.String("round", round))
	}
	play()
	if every := c.Duration("round-every"); every > 0 {
		go func() {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					play()
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           sb.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "sandbox listening",
		logger.String("addr", srv.Addr),
		logger.String("sheet", sandbox.SheetURL("http://localhost"+srv.Addr, tour.ID, "csv")),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("sandbox server: %w", err)
	}
	return nil
}
