package main

import (
	"fmt"
	"log/slog"

	"github.com/finwatch/bad-news-radar/internal/classify"
	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/dedupe"
	"github.com/finwatch/bad-news-radar/internal/pipeline"
	"github.com/finwatch/bad-news-radar/internal/publish"
	"github.com/finwatch/bad-news-radar/internal/store"
	"github.com/finwatch/bad-news-radar/internal/tophub"
)

// app bundles the collaborators a command needs, so each command builds the
// same pipeline the same way.
type app struct {
	store     store.Store
	runner    *pipeline.Runner
	params    pipeline.Params
	publisher *publish.KafkaPublisher
	log       *slog.Logger
}

// newStoreOnlyApp opens just the store, for commands that never fetch.
func newStoreOnlyApp(log *slog.Logger) (*app, error) {
	storeCfg, err := config.LoadStore()
	if err != nil {
		return nil, fmt.Errorf("load store config: %w", err)
	}
	st, err := store.Open(*storeCfg, log)
	if err != nil {
		return nil, err
	}
	return &app{store: st, log: log}, nil
}

// newApp wires the full pipeline: store, fetcher, classifier, dedupe cache
// and, when brokers are configured, the Kafka alert publisher.
func newApp(log *slog.Logger) (*app, error) {
	a, err := newStoreOnlyApp(log)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadPipeline()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}

	var publisher *publish.KafkaPublisher
	var alerts pipeline.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		alerts = publisher
	}

	a.publisher = publisher
	a.runner = pipeline.New(
		tophub.New(cfg.TopHub, log),
		classify.New(cfg.LLM, log),
		a.store,
		dedupe.New(cfg.DedupeCapacity, cfg.DedupeTTL),
		alerts,
		cfg.Workers,
		log,
	)
	a.params = pipeline.Params{
		Keyword:   cfg.Keyword,
		Keywords:  cfg.Keywords,
		Threshold: cfg.Threshold,
		PageSize:  cfg.TopHub.PageSize,
		MaxPages:  cfg.TopHub.MaxPages,
	}
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("close publisher", slog.Any("err", err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", slog.Any("err", err))
	}
}
