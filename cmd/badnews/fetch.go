package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runFetch(args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	keyword := fs.String("keyword", "", "override the configured search keyword")
	keywords := fs.String("keywords", "", "comma-separated negative keywords overriding the configured list")
	threshold := fs.Float64("threshold", -1, "override the sentiment threshold [0,1]")
	minTS := fs.String("min-timestamp", "", "only keep items published at or after this RFC3339 time")
	pageSize := fs.Int("page-size", 0, "override the configured page size")
	maxPages := fs.Int("max-pages", 0, "override the configured page limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	params := a.params
	if *keyword != "" {
		params.Keyword = *keyword
	}
	if *keywords != "" {
		params.Keywords = splitCSV(*keywords)
	}
	if *threshold >= 0 {
		if *threshold > 1 {
			return fmt.Errorf("-threshold must be within [0, 1]")
		}
		params.Threshold = *threshold
	}
	if *pageSize > 0 {
		params.PageSize = *pageSize
	}
	if *maxPages > 0 {
		params.MaxPages = *maxPages
	}
	if *minTS != "" {
		ts, err := time.Parse(time.RFC3339, *minTS)
		if err != nil {
			return fmt.Errorf("parse -min-timestamp: %w", err)
		}
		params.MinTimestamp = ts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	summary, err := a.runner.Run(ctx, params)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
