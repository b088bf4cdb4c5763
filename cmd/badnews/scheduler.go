package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/scheduler"
)

func runScheduler(args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("scheduler", flag.ExitOnError)
	immediate := fs.Bool("immediate", true, "run one cycle immediately before the first tick")
	if err := fs.Parse(args); err != nil {
		return err
	}

	schedCfg, err := config.LoadScheduler()
	if err != nil {
		return fmt.Errorf("load scheduler config: %w", err)
	}

	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sched := scheduler.New(a.runner, a.params, log)
	if err := sched.Start(ctx, schedCfg.Interval); err != nil {
		return err
	}

	if *immediate {
		sched.RunOnce(ctx)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	sched.Stop()
	return nil
}
