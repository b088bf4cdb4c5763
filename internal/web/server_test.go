package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/pipeline"
	"github.com/finwatch/bad-news-radar/internal/store"
	"github.com/finwatch/bad-news-radar/internal/web"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWebConfig() config.Web {
	return config.Web{
		BindAddr:        "127.0.0.1:0",
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(config.Store{
		Backend:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "radar.db"),
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, models.NewsItem{
		ID:             "neg",
		Title:          "某银行数据泄露",
		URL:            "https://example.com/leak",
		MatchedKeyword: "银行",
		LocalSentiment: 0.35,
		FilterReason:   models.ReasonPassed,
		LLMVerdict:     models.VerdictNegative,
		LLMConfidence:  0.9,
		PublishedAt:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		FetchedAt:      time.Now().UTC(),
	}))
	require.NoError(t, s.Persist(ctx, models.NewsItem{
		ID:          "neu",
		Title:       "银行发布季报",
		URL:         "https://example.com/report",
		LLMVerdict:  models.VerdictNotNegative,
		PublishedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		FetchedAt:   time.Now().UTC(),
	}))
	return s
}

func newServer(t *testing.T, st store.Store, run web.RunFunc) *httptest.Server {
	t.Helper()
	srv, err := web.New(testWebConfig(), st, run, discardLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestDashboardRenders(t *testing.T) {
	ts := newServer(t, seededStore(t), nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "金融负面新闻监控")
	require.Contains(t, string(body), "某银行数据泄露")
}

func TestAPIFiltersByVerdict(t *testing.T) {
	ts := newServer(t, seededStore(t), nil)

	resp, err := http.Get(ts.URL + "/api/news?verdict=negative")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result store.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 1, result.Total)
	require.Equal(t, "neg", result.Items[0].ID)
}

func TestRSSContainsOnlyNegatives(t *testing.T) {
	ts := newServer(t, seededStore(t), nil)

	resp, err := http.Get(ts.URL + "/rss")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "某银行数据泄露")
	require.NotContains(t, string(body), "银行发布季报")
}

func TestRunTriggersPipeline(t *testing.T) {
	called := 0
	run := func(ctx context.Context) (*pipeline.Summary, error) {
		called++
		return &pipeline.Summary{Fetched: 5, Persisted: 2}, nil
	}
	ts := newServer(t, seededStore(t), run)

	resp, err := http.Post(ts.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, called)

	var summary pipeline.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Equal(t, 5, summary.Fetched)
	require.Equal(t, 2, summary.Persisted)
}

func TestRunConflictsWhileBusy(t *testing.T) {
	run := func(ctx context.Context) (*pipeline.Summary, error) {
		return nil, pipeline.ErrRunInProgress
	}
	ts := newServer(t, seededStore(t), run)

	resp, err := http.Post(ts.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRunDisabledWithoutTrigger(t *testing.T) {
	ts := newServer(t, seededStore(t), nil)

	resp, err := http.Post(ts.URL+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newServer(t, seededStore(t), nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
