// Package rss renders persisted items as an RSS 2.0 feed.
package rss

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/finwatch/bad-news-radar/internal/models"
)

const (
	feedTitle       = "金融负面新闻监控"
	feedDescription = "银行及金融业负面新闻聚合RSS"
)

// Render produces the RSS XML for the given items. siteURL becomes the
// channel link; items keep the order they are passed in.
func Render(items []models.NewsItem, siteURL string, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       feedTitle,
		Link:        &feeds.Link{Href: siteURL},
		Description: feedDescription,
		Created:     now,
	}

	for _, item := range items {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          item.ID,
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.URL},
			Description: itemSummary(item),
			Created:     item.PublishedAt,
		})
	}

	xml, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return xml, nil
}

// itemSummary builds the per-item HTML body shown by feed readers.
func itemSummary(item models.NewsItem) string {
	var b strings.Builder
	if item.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(item.Description))
	}
	fmt.Fprintf(&b, "<p>命中关键词：%s</p>", html.EscapeString(item.MatchedKeyword))
	fmt.Fprintf(&b, "<p>本地情感分：%.2f</p>", item.LocalSentiment)
	fmt.Fprintf(&b, "<p>模型判定：%s（置信度 %.2f）</p>", verdictLabel(item.LLMVerdict), item.LLMConfidence)
	if item.FilterReason != "" {
		fmt.Fprintf(&b, "<p>过滤阶段：%s</p>", html.EscapeString(string(item.FilterReason)))
	}
	return b.String()
}

func verdictLabel(v models.Verdict) string {
	switch v {
	case models.VerdictNegative:
		return "负面"
	case models.VerdictNotNegative:
		return "非负面"
	case models.VerdictError:
		return "判定失败"
	default:
		return "待定"
	}
}
