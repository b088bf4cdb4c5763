package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finwatch/bad-news-radar/internal/config"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "https://llm.example.com/v1")
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "test-model")

	cfg, err := config.LoadPipeline()
	require.NoError(t, err)

	require.Equal(t, "银行", cfg.Keyword)
	require.Contains(t, cfg.Keywords, "诈骗")
	require.Contains(t, cfg.Keywords, "信息泄露")
	require.InDelta(t, 0.45, cfg.Threshold, 1e-9)
	require.Equal(t, "https://api.tophubdata.com", cfg.TopHub.BaseURL)
	require.Equal(t, 50, cfg.TopHub.PageSize)
	require.Equal(t, 3, cfg.TopHub.MaxRetries)
	require.Equal(t, 10*time.Second, cfg.TopHub.Timeout)
	require.Equal(t, time.Second, cfg.TopHub.BackoffBase)
	require.Equal(t, 30*time.Second, cfg.TopHub.BackoffCap)
	require.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 5*time.Second, cfg.LLM.RetryDelay)
	require.Equal(t, 3, cfg.LLM.MaxRetries)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "bad_news_alerts", cfg.KafkaTopic)
}

func TestLoadPipelineOverrides(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "https://llm.example.com/v1")
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "test-model")
	t.Setenv("FETCH_KEYWORD", "证券")
	t.Setenv("NEGATIVE_KEYWORDS", "违规, 处罚 ,,欺诈")
	t.Setenv("SENTIMENT_NEGATIVE_THRESHOLD", "0.4")
	t.Setenv("FETCH_PAGE_SIZE", "20")
	t.Setenv("TOPHUB_MAX_PAGES", "2")
	t.Setenv("TOPHUB_MAX_RETRIES", "5")
	t.Setenv("TOPHUB_BACKOFF_BASE_SECONDS", "2")
	t.Setenv("TOPHUB_BACKOFF_CAP_SECONDS", "8")
	t.Setenv("LLM_RETRY_DELAY_SECONDS", "1")
	t.Setenv("PIPELINE_WORKERS", "2")
	t.Setenv("KAFKA_BROKERS", "kafka-a:9092,kafka-b:9093")

	cfg, err := config.LoadPipeline()
	require.NoError(t, err)

	require.Equal(t, "证券", cfg.Keyword)
	require.Equal(t, []string{"违规", "处罚", "欺诈"}, cfg.Keywords)
	require.InDelta(t, 0.4, cfg.Threshold, 1e-9)
	require.Equal(t, 20, cfg.TopHub.PageSize)
	require.Equal(t, 2, cfg.TopHub.MaxPages)
	require.Equal(t, 5, cfg.TopHub.MaxRetries)
	require.Equal(t, 2*time.Second, cfg.TopHub.BackoffBase)
	require.Equal(t, 8*time.Second, cfg.TopHub.BackoffCap)
	require.Equal(t, time.Second, cfg.LLM.RetryDelay)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, []string{"kafka-a:9092", "kafka-b:9093"}, cfg.KafkaBrokers)
}

func TestLoadPipelineRequiresLLM(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_MODEL", "")

	_, err := config.LoadPipeline()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LLM_BASE_URL")
}

func TestLoadPipelineRejectsBadThreshold(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "https://llm.example.com/v1")
	t.Setenv("LLM_API_KEY", "k")
	t.Setenv("LLM_MODEL", "m")
	t.Setenv("SENTIMENT_NEGATIVE_THRESHOLD", "1.5")

	_, err := config.LoadPipeline()
	require.Error(t, err)
}

func TestLoadStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SQLITE_PATH", "")

	cfg, err := config.LoadStore()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Backend)
	require.Equal(t, "data/news.db", cfg.SQLitePath)

	t.Setenv("STORE_BACKEND", "elastic")
	t.Setenv("ELASTICSEARCH_ADDR", "http://es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")

	cfg, err = config.LoadStore()
	require.NoError(t, err)
	require.Equal(t, "elastic", cfg.Backend)
	require.Equal(t, "http://es:9200", cfg.ElasticAddr)
	require.Equal(t, "custom", cfg.ElasticIndex)

	t.Setenv("STORE_BACKEND", "postgres")
	_, err = config.LoadStore()
	require.Error(t, err)
}

func TestLoadScheduler(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "")
	cfg, err := config.LoadScheduler()
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.Interval)

	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "3")
	_, err = config.LoadScheduler()
	require.Error(t, err)
}

func TestLoadWeb(t *testing.T) {
	t.Setenv("WEB_BIND_ADDR", "0.0.0.0:8080")
	t.Setenv("WEB_PAGE_SIZE", "15")
	t.Setenv("WEB_MAX_PAGE_SIZE", "100")
	t.Setenv("SCHEDULER_ENABLED", "true")

	cfg, err := config.LoadWeb()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPageSize)
	require.Equal(t, 100, cfg.MaxPageSize)
	require.True(t, cfg.SchedulerEnabled)

	t.Setenv("WEB_PAGE_SIZE", "300")
	_, err = config.LoadWeb()
	require.Error(t, err)
}
