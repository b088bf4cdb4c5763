package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultKeyword  = "银行"
	defaultKeywords = "漏洞,信息泄露,网络安全,数据安全,诈骗,人脸,换脸,盗刷,信用卡,盗窃,欺诈"
)

// Store selects and configures the persistence backend.
type Store struct {
	Backend      string // "sqlite" or "elastic"
	SQLitePath   string
	ElasticAddr  string
	ElasticIndex string
}

// TopHub configures the upstream ranking-API client.
type TopHub struct {
	APIKey      string
	BaseURL     string
	PageSize    int
	MaxPages    int
	MaxRetries  int
	Timeout     time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// LLM configures the remote classifier.
type LLM struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	RatePerMinute int
}

// Pipeline bundles everything one fetch-classify run needs.
type Pipeline struct {
	TopHub TopHub
	LLM    LLM

	Keyword   string
	Keywords  []string
	Threshold float64
	Workers   int

	DedupeCapacity int
	DedupeTTL      time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Scheduler configures the periodic fetch loop.
type Scheduler struct {
	Interval time.Duration
}

// Web describes HTTP-layer configuration.
type Web struct {
	BindAddr         string
	DefaultPageSize  int
	MaxPageSize      int
	SchedulerEnabled bool
}

// LoadStore builds a Store config from environment variables.
func LoadStore() (*Store, error) {
	c := &Store{
		Backend:      strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		SQLitePath:   getEnv("SQLITE_PATH", "data/news.db"),
		ElasticAddr:  getEnv("ELASTICSEARCH_ADDR", "http://localhost:9200"),
		ElasticIndex: getEnv("ELASTICSEARCH_INDEX", "bad_news"),
	}

	switch c.Backend {
	case "sqlite", "elastic":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be sqlite or elastic, got %q", c.Backend)
	}
	if c.Backend == "sqlite" && c.SQLitePath == "" {
		return nil, fmt.Errorf("SQLITE_PATH must not be empty")
	}

	return c, nil
}

// LoadPipeline builds a Pipeline config from environment variables.
func LoadPipeline() (*Pipeline, error) {
	c := &Pipeline{
		TopHub: TopHub{
			APIKey:      getEnv("TOPHUB_API_KEY", ""),
			BaseURL:     getEnv("TOPHUB_BASE_URL", "https://api.tophubdata.com"),
			PageSize:    getInt("FETCH_PAGE_SIZE", 50),
			MaxPages:    getInt("TOPHUB_MAX_PAGES", 5),
			MaxRetries:  getInt("TOPHUB_MAX_RETRIES", 3),
			Timeout:     getSeconds("TOPHUB_TIMEOUT_SECONDS", 10),
			BackoffBase: getSeconds("TOPHUB_BACKOFF_BASE_SECONDS", 1),
			BackoffCap:  getSeconds("TOPHUB_BACKOFF_CAP_SECONDS", 30),
		},
		LLM: LLM{
			BaseURL:       getEnv("LLM_BASE_URL", ""),
			APIKey:        getEnv("LLM_API_KEY", ""),
			Model:         getEnv("LLM_MODEL", ""),
			Timeout:       getSeconds("LLM_TIMEOUT_SECONDS", 15),
			MaxRetries:    getInt("LLM_MAX_RETRIES", 3),
			RetryDelay:    getSeconds("LLM_RETRY_DELAY_SECONDS", 5),
			RatePerMinute: getInt("LLM_RATE_LIMIT_PER_MINUTE", 60),
		},
		Keyword:        getEnv("FETCH_KEYWORD", defaultKeyword),
		Keywords:       splitAndTrim(getEnv("NEGATIVE_KEYWORDS", defaultKeywords)),
		Threshold:      getFloat("SENTIMENT_NEGATIVE_THRESHOLD", 0.45),
		Workers:        getInt("PIPELINE_WORKERS", 4),
		DedupeCapacity: getInt("DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("DEDUPE_TTL", "72h"),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "bad_news_alerts"),
	}

	if c.Keyword == "" {
		return nil, fmt.Errorf("FETCH_KEYWORD must not be empty")
	}
	if len(c.Keywords) == 0 {
		return nil, fmt.Errorf("NEGATIVE_KEYWORDS must contain at least one keyword")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return nil, fmt.Errorf("SENTIMENT_NEGATIVE_THRESHOLD must be within [0, 1]")
	}
	if c.TopHub.PageSize < 10 || c.TopHub.PageSize > 100 {
		return nil, fmt.Errorf("FETCH_PAGE_SIZE must be within [10, 100]")
	}
	if c.TopHub.MaxPages <= 0 {
		return nil, fmt.Errorf("TOPHUB_MAX_PAGES must be positive")
	}
	if c.TopHub.MaxRetries < 0 {
		return nil, fmt.Errorf("TOPHUB_MAX_RETRIES cannot be negative")
	}
	if c.LLM.BaseURL == "" {
		return nil, fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	if c.LLM.Model == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	if c.LLM.MaxRetries < 0 {
		return nil, fmt.Errorf("LLM_MAX_RETRIES cannot be negative")
	}
	if c.Workers <= 0 {
		return nil, fmt.Errorf("PIPELINE_WORKERS must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadScheduler builds a Scheduler config from environment variables.
func LoadScheduler() (*Scheduler, error) {
	c := &Scheduler{
		Interval: getMinutes("SCHEDULER_INTERVAL_MINUTES", 30),
	}

	if c.Interval < 5*time.Minute || c.Interval > 12*time.Hour {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL_MINUTES must be within [5, 720]")
	}

	return c, nil
}

// LoadWeb builds a Web config from environment variables.
func LoadWeb() (*Web, error) {
	c := &Web{
		BindAddr:         getEnv("WEB_BIND_ADDR", "127.0.0.1:5000"),
		DefaultPageSize:  getInt("WEB_PAGE_SIZE", 20),
		MaxPageSize:      getInt("WEB_MAX_PAGE_SIZE", 200),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", false),
	}

	if c.DefaultPageSize <= 0 {
		return nil, fmt.Errorf("WEB_PAGE_SIZE must be positive")
	}
	if c.MaxPageSize <= 0 {
		return nil, fmt.Errorf("WEB_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return nil, fmt.Errorf("WEB_PAGE_SIZE cannot exceed WEB_MAX_PAGE_SIZE")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Second
}

func getMinutes(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Minute
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
