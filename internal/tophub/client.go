// Package tophub wraps the TopHub ranking API used as the single news source.
package tophub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/retry"
)

// ErrPageExhausted marks a page whose retry budget ran out. The run keeps the
// pages fetched so far and surfaces this as a warning, not a failure.
var ErrPageExhausted = errors.New("page retries exhausted")

// Item is one raw listing entry as returned by the upstream search endpoint.
type Item struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Thumbnail   string   `json:"thumbnail"`
	Extra       string   `json:"extra"`
	Time        UnixTime `json:"time"`
}

// UnixTime tolerates the upstream's habit of sending unix seconds as either a
// number or a numeric string.
type UnixTime struct {
	time.Time
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Not a timestamp we understand; leave it unset rather than
		// failing the whole page.
		t.Time = time.Time{}
		return nil
	}
	t.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

// Page is one validated listing page.
type Page struct {
	Number     int
	Items      []Item
	TotalPages int
}

// FetchResult carries the pages a run managed to retrieve plus warnings for
// the pages it gave up on.
type FetchResult struct {
	Pages    []Page
	Warnings []string
}

// Client fetches paginated news listings with bounded retries per page.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retry.Policy
	log        *slog.Logger
}

// New builds a Client from config. The timeout bounds each individual HTTP
// call; a timed-out call counts as transient and is retried.
func New(cfg config.TopHub, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		policy:     retry.Exponential(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffCap),
		log:        log,
	}
}

// FetchAll walks /search pages for the keyword until maxPages, an empty page,
// or the upstream-reported last page. A page that exhausts its retries is
// recorded as a warning and skipped; earlier and later pages still count.
func (c *Client) FetchAll(ctx context.Context, keyword string, size, maxPages int) (*FetchResult, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	result := &FetchResult{}
	for number := 1; number <= maxPages; number++ {
		var page *Page
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			var searchErr error
			page, searchErr = c.Search(ctx, keyword, number, size)
			return searchErr
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			warning := fmt.Sprintf("%v: page %d: %v", ErrPageExhausted, number, err)
			c.log.Warn("giving up on page", slog.Int("page", number), slog.Any("err", err))
			result.Warnings = append(result.Warnings, warning)
			continue
		}

		if len(page.Items) == 0 {
			c.log.Debug("empty page, stopping pagination", slog.Int("page", number))
			break
		}
		result.Pages = append(result.Pages, *page)

		if page.TotalPages > 0 && number >= page.TotalPages {
			break
		}
	}

	return result, nil
}

// Search fetches a single listing page. Network errors, non-2xx statuses and
// malformed payloads are all reported as plain errors so the caller's retry
// policy treats them uniformly as transient.
func (c *Client) Search(ctx context.Context, keyword string, page, size int) (*Page, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&p=%d&size=%d",
		c.baseURL, url.QueryEscape(keyword), page, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search page %d: status %d: %s", page, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Error bool `json:"error"`
		Data  struct {
			Items      []Item `json:"items"`
			TotalPages int    `json:"totalpage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("search page %d: decode payload: %w", page, err)
	}
	if payload.Error {
		return nil, fmt.Errorf("search page %d: upstream reported an error", page)
	}
	if payload.Data.Items == nil {
		return nil, fmt.Errorf("search page %d: payload missing data.items", page)
	}

	return &Page{
		Number:     page,
		Items:      payload.Data.Items,
		TotalPages: payload.Data.TotalPages,
	}, nil
}
