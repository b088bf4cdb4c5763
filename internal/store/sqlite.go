package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/finwatch/bad-news-radar/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS news_items (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	thumbnail        TEXT NOT NULL DEFAULT '',
	extra            TEXT NOT NULL DEFAULT '',
	matched_keyword  TEXT NOT NULL DEFAULT '',
	local_sentiment  REAL NOT NULL DEFAULT 0,
	filter_reason    TEXT NOT NULL DEFAULT '',
	llm_verdict      TEXT NOT NULL DEFAULT 'pending',
	llm_confidence   REAL NOT NULL DEFAULT 0,
	published_at     INTEGER NOT NULL DEFAULT 0,
	fetched_at       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_news_published ON news_items (published_at);
CREATE INDEX IF NOT EXISTS idx_news_fetched   ON news_items (fetched_at);
CREATE INDEX IF NOT EXISTS idx_news_verdict   ON news_items (llm_verdict);
`

// SQLiteStore persists items in a local SQLite file via the pure-Go driver.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The driver is not safe for concurrent writes on one connection pool
	// with default settings; a single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Seen(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM news_items WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seen %s: %w", id, err)
	}
	return true, nil
}

func (s *SQLiteStore) Persist(ctx context.Context, item models.NewsItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO news_items
			(id, title, description, url, thumbnail, extra, matched_keyword,
			 local_sentiment, filter_reason, llm_verdict, llm_confidence,
			 published_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		item.ID, item.Title, item.Description, item.URL, item.Thumbnail,
		item.Extra, item.MatchedKeyword, item.LocalSentiment,
		string(item.FilterReason), string(item.LLMVerdict), item.LLMConfidence,
		toUnix(item.PublishedAt), toUnix(item.FetchedAt))
	if err != nil {
		var serr *sqlite.Error
		// Mask extended result codes down to the primary constraint code.
		if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: persist %s: %v", ErrIntegrity, item.ID, err)
		}
		return fmt.Errorf("persist %s: %w", item.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) (*Result, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_items`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	query := `SELECT id, title, description, url, thumbnail, extra,
		matched_keyword, local_sentiment, filter_reason, llm_verdict,
		llm_confidence, published_at, fetched_at
		FROM news_items` + where + `
		ORDER BY published_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	result := &Result{Total: total, Items: []models.NewsItem{}}
	for rows.Next() {
		var item models.NewsItem
		var reason, verdict string
		var published, fetched int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.URL,
			&item.Thumbnail, &item.Extra, &item.MatchedKeyword,
			&item.LocalSentiment, &reason, &verdict, &item.LLMConfidence,
			&published, &fetched); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.FilterReason = models.FilterReason(reason)
		item.LLMVerdict = models.Verdict(verdict)
		item.PublishedAt = fromUnix(published)
		item.FetchedAt = fromUnix(fetched)
		result.Items = append(result.Items, item)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ClearToday(ctx context.Context, now time.Time) (int, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM news_items WHERE fetched_at >= ? AND fetched_at < ?`,
		start.Unix(), end.Unix())
	if err != nil {
		return 0, fmt.Errorf("clear today: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear today: rows affected: %w", err)
	}
	s.log.Info("cleared items fetched today", slog.Int64("deleted", deleted))
	return int(deleted), nil
}

func (s *SQLiteStore) LatestPublished(ctx context.Context) (time.Time, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(published_at) FROM news_items WHERE published_at > 0`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest published: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return fromUnix(latest.Int64), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any

	if f.Text != "" {
		pattern := "%" + f.Text + "%"
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if f.MatchedKeyword != "" {
		clauses = append(clauses, "matched_keyword = ?")
		args = append(args, f.MatchedKeyword)
	}
	if f.Verdict != "" {
		clauses = append(clauses, "llm_verdict = ?")
		args = append(args, string(f.Verdict))
	}
	if f.SentimentMin != nil {
		clauses = append(clauses, "local_sentiment >= ?")
		args = append(args, *f.SentimentMin)
	}
	if f.SentimentMax != nil {
		clauses = append(clauses, "local_sentiment <= ?")
		args = append(args, *f.SentimentMax)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(secs int64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
