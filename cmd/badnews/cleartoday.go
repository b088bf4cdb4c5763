package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"
)

func runClearToday(args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("clear-today", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newStoreOnlyApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := a.store.ClearToday(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("deleted %d items fetched today\n", deleted)
	log.Info("clear-today finished", slog.Int("deleted", deleted))
	return nil
}
