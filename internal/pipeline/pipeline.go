// Package pipeline runs one end-to-end radar cycle: fetch listing pages,
// screen items locally, classify survivors with the LLM, persist and alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finwatch/bad-news-radar/internal/classify"
	"github.com/finwatch/bad-news-radar/internal/dedupe"
	"github.com/finwatch/bad-news-radar/internal/filter"
	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/store"
	"github.com/finwatch/bad-news-radar/internal/tophub"
)

// ErrRunInProgress is returned when a run is requested while another one
// holds the lock. Runs never queue; the caller retries on its own schedule.
var ErrRunInProgress = errors.New("a run is already in progress")

// Fetcher supplies listing pages for a keyword.
type Fetcher interface {
	FetchAll(ctx context.Context, keyword string, size, maxPages int) (*tophub.FetchResult, error)
}

// Classifier delivers the final verdict for one item.
type Classifier interface {
	Classify(ctx context.Context, title, description string) classify.Result
}

// Publisher is notified of confirmed negative items. Optional.
type Publisher interface {
	PublishNegative(ctx context.Context, item models.NewsItem) error
}

// Params configure a single run.
type Params struct {
	Keyword   string
	Keywords  []string
	Threshold float64
	PageSize  int
	MaxPages  int

	// MinTimestamp drops items published strictly before it. When zero the
	// runner falls back to the store's latest published time, and from an
	// empty store to local midnight of the current day.
	MinTimestamp time.Time
}

// Summary is the accounting of one run.
type Summary struct {
	Fetched     int      `json:"fetched"`
	TooOld      int      `json:"too_old"`
	Deduped     int      `json:"deduped"`
	FilteredOut int      `json:"filtered_out"`
	FilteredIn  int      `json:"filtered_in"`
	Classified  int      `json:"classified"`
	Persisted   int      `json:"persisted"`
	Negative    int      `json:"negative"`
	Errors      int      `json:"errors"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Runner owns the run lock and all pipeline collaborators.
type Runner struct {
	mu         sync.Mutex
	fetcher    Fetcher
	classifier Classifier
	store      store.Store
	cache      *dedupe.Cache
	publisher  Publisher
	workers    int
	log        *slog.Logger
}

// New assembles a Runner. publisher may be nil.
func New(fetcher Fetcher, classifier Classifier, st store.Store, cache *dedupe.Cache,
	publisher Publisher, workers int, log *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		fetcher:    fetcher,
		classifier: classifier,
		store:      st,
		cache:      cache,
		publisher:  publisher,
		workers:    workers,
		log:        log,
	}
}

// Run executes one cycle. Only one run may be active at a time; a second
// caller gets ErrRunInProgress immediately instead of blocking.
func (r *Runner) Run(ctx context.Context, params Params) (*Summary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := time.Now()
	summary := &Summary{}

	minTS, err := r.resolveMinTimestamp(ctx, params.MinTimestamp)
	if err != nil {
		return summary, err
	}

	r.log.Info("run started",
		slog.String("keyword", params.Keyword),
		slog.Time("min_timestamp", minTS))

	fetched, err := r.fetcher.FetchAll(ctx, params.Keyword, params.PageSize, params.MaxPages)
	if err != nil {
		return summary, fmt.Errorf("fetch listings: %w", err)
	}
	summary.Warnings = append(summary.Warnings, fetched.Warnings...)

	candidates, err := r.screen(ctx, fetched, params, minTS, summary)
	if err != nil {
		return summary, err
	}
	summary.FilteredIn = len(candidates)

	if err := r.classifyAll(ctx, candidates); err != nil {
		return summary, err
	}
	summary.Classified = len(candidates)

	if err := r.finish(ctx, candidates, summary); err != nil {
		return summary, err
	}

	r.log.Info("run finished",
		slog.Duration("took", time.Since(started)),
		slog.Int("fetched", summary.Fetched),
		slog.Int("persisted", summary.Persisted),
		slog.Int("negative", summary.Negative))
	return summary, nil
}

// resolveMinTimestamp picks the cutoff for this run.
func (r *Runner) resolveMinTimestamp(ctx context.Context, explicit time.Time) (time.Time, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}

	latest, err := r.store.LatestPublished(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve min timestamp: %w", err)
	}
	if !latest.IsZero() {
		return latest, nil
	}

	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
}

// screen walks the fetched pages and returns the items that pass the age,
// dedupe and local-filter gates, already carrying their filter metadata.
func (r *Runner) screen(ctx context.Context, fetched *tophub.FetchResult,
	params Params, minTS time.Time, summary *Summary) ([]*models.NewsItem, error) {

	var candidates []*models.NewsItem
	seenThisRun := make(map[string]struct{})

	for _, page := range fetched.Pages {
		for _, raw := range page.Items {
			summary.Fetched++

			published := raw.Time.Time
			if published.IsZero() {
				r.log.Debug("skipping item without a timestamp", slog.String("title", raw.Title))
				summary.TooOld++
				continue
			}
			// Items published exactly at the cutoff still count.
			if published.Before(minTS) {
				summary.TooOld++
				continue
			}

			id := filter.ItemID(raw.URL, raw.Title, published)
			if _, dup := seenThisRun[id]; dup {
				summary.Deduped++
				continue
			}
			seenThisRun[id] = struct{}{}

			if r.cache.Contains(id) {
				summary.Deduped++
				continue
			}
			persisted, err := r.store.Seen(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("dedupe lookup: %w", err)
			}
			if persisted {
				r.cache.Add(id)
				summary.Deduped++
				continue
			}

			decision := filter.Evaluate(raw.Title, raw.Description, params.Keywords, params.Threshold)
			if !decision.Passed {
				summary.FilteredOut++
				continue
			}

			candidates = append(candidates, &models.NewsItem{
				ID:             id,
				Title:          raw.Title,
				Description:    raw.Description,
				URL:            raw.URL,
				Thumbnail:      raw.Thumbnail,
				Extra:          raw.Extra,
				MatchedKeyword: decision.MatchedKeyword,
				LocalSentiment: decision.Sentiment,
				FilterReason:   decision.Reason,
				LLMVerdict:     models.VerdictPending,
				PublishedAt:    published,
				FetchedAt:      time.Now().UTC(),
			})
		}
	}

	return candidates, nil
}

// classifyAll fans candidates out to the classifier with a bounded worker
// pool. The classifier folds its own failures into an error verdict, so the
// group only fails on context cancellation.
func (r *Runner) classifyAll(ctx context.Context, candidates []*models.NewsItem) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for _, item := range candidates {
		item := item
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			res := r.classifier.Classify(groupCtx, item.Title, item.Description)
			item.LLMVerdict = res.Verdict
			item.LLMConfidence = res.Confidence
			return nil
		})
	}
	return group.Wait()
}

// finish persists classified items in order and publishes negative alerts.
func (r *Runner) finish(ctx context.Context, candidates []*models.NewsItem, summary *Summary) error {
	for _, item := range candidates {
		if err := r.store.Persist(ctx, *item); err != nil {
			if errors.Is(err, store.ErrIntegrity) {
				return err
			}
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("persist %s: %v", item.ID, err))
			continue
		}
		r.cache.Add(item.ID)
		summary.Persisted++
		if item.LLMVerdict == models.VerdictError {
			summary.Errors++
		}

		if item.LLMVerdict != models.VerdictNegative {
			continue
		}
		summary.Negative++
		if r.publisher == nil {
			continue
		}
		if err := r.publisher.PublishNegative(ctx, *item); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("alert %s: %v", item.ID, err))
		}
	}
	return nil
}
