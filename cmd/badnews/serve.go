package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/pipeline"
	"github.com/finwatch/bad-news-radar/internal/scheduler"
	"github.com/finwatch/bad-news-radar/internal/web"
)

func runServe(args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	webCfg, err := config.LoadWeb()
	if err != nil {
		return fmt.Errorf("load web config: %w", err)
	}

	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	trigger := func(ctx context.Context) (*pipeline.Summary, error) {
		return a.runner.Run(ctx, a.params)
	}

	srv, err := web.New(*webCfg, a.store, trigger, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if webCfg.SchedulerEnabled {
		schedCfg, err := config.LoadScheduler()
		if err != nil {
			return fmt.Errorf("load scheduler config: %w", err)
		}
		sched := scheduler.New(a.runner, a.params, log)
		if err := sched.Start(ctx, schedCfg.Interval); err != nil {
			return err
		}
		defer sched.Stop()
	}

	return srv.Serve(ctx)
}
