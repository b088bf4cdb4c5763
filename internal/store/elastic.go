package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/finwatch/bad-news-radar/internal/models"
)

// ElasticStore keeps items in a single Elasticsearch index. Document identity
// is the item ID; Persist uses the create op so replays never overwrite what
// an earlier run wrote.
type ElasticStore struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// OpenElastic connects to the cluster at addr and uses the given index.
func OpenElastic(addr, index string, log *slog.Logger) (*ElasticStore, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticStore{es: es, index: index, log: log}, nil
}

func (s *ElasticStore) Seen(ctx context.Context, id string) (bool, error) {
	req := esapi.ExistsRequest{Index: s.index, DocumentID: id}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists %s: unexpected status %s", id, res.Status())
	}
}

func (s *ElasticStore) Persist(ctx context.Context, item models.NewsItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	req := esapi.CreateRequest{
		Index:      s.index,
		DocumentID: item.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("persist %s: %w", item.ID, err)
	}
	defer res.Body.Close()

	// Create returns 409 when the document already exists; that is the
	// idempotent-persist case, not a failure.
	if res.StatusCode == http.StatusConflict {
		return nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("persist %s failed: %s", item.ID, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *ElasticStore) Query(ctx context.Context, f Filter) (*Result, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 3)

	if f.Text != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  f.Text,
				"fields": []string{"title^2", "description"},
			},
		})
	}
	if f.MatchedKeyword != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"matched_keyword.keyword": f.MatchedKeyword},
		})
	}
	if f.Verdict != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"llm_verdict.keyword": string(f.Verdict)},
		})
	}
	if f.SentimentMin != nil || f.SentimentMax != nil {
		rangeQuery := map[string]any{}
		if f.SentimentMin != nil {
			rangeQuery["gte"] = *f.SentimentMin
		}
		if f.SentimentMax != nil {
			rangeQuery["lte"] = *f.SentimentMax
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"local_sentiment": rangeQuery},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{{"match_all": map[string]any{}}}
	}

	body := map[string]any{
		"from":             (page - 1) * size,
		"size":             size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.NewsItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.NewsItem, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}
	return &Result{Total: int(parsed.Hits.Total.Value), Items: items}, nil
}

func (s *ElasticStore) ClearToday(ctx context.Context, now time.Time) (int, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	body := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"fetched_at": map[string]any{
					"gte": start.UTC().Format(time.RFC3339),
					"lt":  end.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := s.es.DeleteByQuery(
		[]string{s.index},
		bytes.NewReader(payload),
		s.es.DeleteByQuery.WithContext(ctx),
		s.es.DeleteByQuery.WithWaitForCompletion(true),
		s.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	s.log.Info("cleared items fetched today", slog.Int64("deleted", parsed.Deleted))
	return int(parsed.Deleted), nil
}

func (s *ElasticStore) LatestPublished(ctx context.Context) (time.Time, error) {
	body := map[string]any{
		"size":    1,
		"_source": []string{"published_at"},
		"query":   map[string]any{"match_all": map[string]any{}},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest published: %w", err)
	}
	defer res.Body.Close()

	// A fresh index is not an error, just an empty store.
	if res.StatusCode == http.StatusNotFound {
		return time.Time{}, nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return time.Time{}, fmt.Errorf("latest published failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					PublishedAt time.Time `json:"published_at"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return time.Time{}, fmt.Errorf("decode latest published: %w", err)
	}
	if len(parsed.Hits.Hits) == 0 {
		return time.Time{}, nil
	}
	return parsed.Hits.Hits[0].Source.PublishedAt, nil
}

func (s *ElasticStore) Close() error {
	return nil
}
