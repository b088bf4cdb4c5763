package rss_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/rss"
)

func TestRenderIncludesChannelAndItems(t *testing.T) {
	items := []models.NewsItem{
		{
			ID:             "abc",
			Title:          "某银行数据泄露",
			Description:    "客户信息外泄",
			URL:            "https://example.com/leak",
			MatchedKeyword: "银行",
			LocalSentiment: 0.35,
			LLMVerdict:     models.VerdictNegative,
			LLMConfidence:  0.92,
			PublishedAt:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:          "def",
			Title:       "银行发布季报",
			URL:         "https://example.com/report",
			LLMVerdict:  models.VerdictNotNegative,
			PublishedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		},
	}

	xml, err := rss.Render(items, "https://radar.example.com", time.Now())
	require.NoError(t, err)

	require.Contains(t, xml, "金融负面新闻监控")
	require.Contains(t, xml, "银行及金融业负面新闻聚合RSS")
	require.Contains(t, xml, "某银行数据泄露")
	require.Contains(t, xml, "https://example.com/leak")
	require.Contains(t, xml, "命中关键词")
	require.Contains(t, xml, "负面")
	require.Contains(t, xml, "非负面")
}

func TestRenderEmptyFeed(t *testing.T) {
	xml, err := rss.Render(nil, "https://radar.example.com", time.Now())
	require.NoError(t, err)
	require.Contains(t, xml, "<rss")
	require.NotContains(t, xml, "<item>")
}

func TestRenderEscapesHTMLInDescription(t *testing.T) {
	items := []models.NewsItem{{
		ID:          "x",
		Title:       "t",
		Description: `<script>alert("x")</script>`,
		URL:         "https://example.com/x",
		PublishedAt: time.Now(),
	}}

	xml, err := rss.Render(items, "https://radar.example.com", time.Now())
	require.NoError(t, err)
	require.NotContains(t, xml, "<script>")
}
