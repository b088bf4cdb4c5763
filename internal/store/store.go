// Package store persists news items behind a backend-agnostic interface.
// SQLite is the default backend; Elasticsearch is available for deployments
// that already run a cluster.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/models"
)

// ErrIntegrity reports a constraint violation other than a duplicate ID.
// Duplicate IDs are not errors: Persist is idempotent by design of the run
// loop, which may revisit the same headline on every cycle.
var ErrIntegrity = errors.New("store integrity violation")

// Filter narrows a Query. Zero values mean "no constraint".
type Filter struct {
	Text           string
	MatchedKeyword string
	Verdict        models.Verdict
	SentimentMin   *float64
	SentimentMax   *float64
	Page           int
	PageSize       int
}

// Result is one page of query output with the total match count.
type Result struct {
	Total int
	Items []models.NewsItem
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// Seen reports whether an item with this ID is already persisted.
	Seen(ctx context.Context, id string) (bool, error)

	// Persist stores the item. Persisting an already-stored ID is a no-op.
	Persist(ctx context.Context, item models.NewsItem) error

	// Query returns items matching the filter, newest published first.
	Query(ctx context.Context, f Filter) (*Result, error)

	// ClearToday deletes items fetched on the same local calendar day as now.
	ClearToday(ctx context.Context, now time.Time) (int, error)

	// LatestPublished returns the newest published_at across all items, or
	// the zero time when the store is empty.
	LatestPublished(ctx context.Context) (time.Time, error)

	Close() error
}

// Open creates the backend named in the config.
func Open(cfg config.Store, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, log)
	case "elastic":
		return OpenElastic(cfg.ElasticAddr, cfg.ElasticIndex, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
