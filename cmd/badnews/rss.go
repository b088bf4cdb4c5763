package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/rss"
	"github.com/finwatch/bad-news-radar/internal/store"
)

func runRSS(args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("rss", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of items in the feed")
	out := fs.String("out", "", "write the feed to this file instead of stdout")
	site := fs.String("site", "http://localhost:5000", "channel link for the feed")
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

	result, err := a.store.Query(ctx, store.Filter{
		Verdict:  models.VerdictNegative,
		Page:     1,
		PageSize: *limit,
	})
	if err != nil {
		return err
	}

	xml, err := rss.Render(result.Items, *site, time.Now())
	if err != nil {
		return err
	}

	if *out == "" {
		fmt.Println(xml)
		return nil
	}
	if err := os.WriteFile(*out, []byte(xml), 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	log.Info("feed written", slog.String("path", *out), slog.Int("items", len(result.Items)))
	return nil
}
