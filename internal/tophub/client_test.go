package tophub_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/tophub"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) config.TopHub {
	return config.TopHub{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		PageSize:    50,
		MaxPages:    5,
		MaxRetries:  2,
		Timeout:     2 * time.Second,
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
	}
}

func pageBody(total int, titles ...string) string {
	items := ""
	for i, title := range titles {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"title":%q,"description":"d","url":"https://example.com/%s","time":1709290800}`, title, title)
	}
	return fmt.Sprintf(`{"error":false,"data":{"items":[%s],"totalpage":%d}}`, items, total)
}

func TestFetchAllStopsAtEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("p") {
		case "1":
			fmt.Fprint(w, pageBody(0, "a", "b"))
		default:
			fmt.Fprint(w, `{"error":false,"data":{"items":[],"totalpage":0}}`)
		}
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	res, err := client.FetchAll(context.Background(), "银行", 50, 5)
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	require.Len(t, res.Pages[0].Items, 2)
	require.Empty(t, res.Warnings)

	item := res.Pages[0].Items[0]
	require.Equal(t, "a", item.Title)
	require.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), item.Time.Time)
}

func TestFetchAllStopsAtTotalPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, pageBody(2, "x"))
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	res, err := client.FetchAll(context.Background(), "银行", 50, 10)
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchAllRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, pageBody(1, "recovered"))
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	res, err := client.FetchAll(context.Background(), "银行", 50, 1)
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	require.Empty(t, res.Warnings)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchAllPartialSuccessOnExhaustedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "1":
			fmt.Fprint(w, pageBody(3, "first"))
		case "2":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, pageBody(3, "third"))
		}
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	res, err := client.FetchAll(context.Background(), "银行", 50, 3)
	require.NoError(t, err)

	// Page 2 is reported as a warning, pages 1 and 3 still arrive.
	require.Len(t, res.Pages, 2)
	require.Equal(t, "first", res.Pages[0].Items[0].Title)
	require.Equal(t, "third", res.Pages[1].Items[0].Title)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "page 2")
	require.Contains(t, res.Warnings[0], "retries exhausted")
}

func TestSearchRejectsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":false,"data":{"totalpage":1}}`)
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	_, err := client.Search(context.Background(), "银行", 1, 50)
	require.Error(t, err)
	require.Contains(t, err.Error(), "data.items")
}

func TestUnixTimeAcceptsNumericString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":false,"data":{"items":[{"title":"t","url":"u","time":"1709290800"}],"totalpage":1}}`)
	}))
	defer srv.Close()

	client := tophub.New(testConfig(srv.URL), discardLogger())
	page, err := client.Search(context.Background(), "银行", 1, 50)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), page.Items[0].Time.Time)
}
