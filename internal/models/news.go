package models

import "time"

// Verdict is the LLM's judgment on whether an item is negative financial news.
type Verdict string

const (
	VerdictPending     Verdict = "pending"
	VerdictNegative    Verdict = "negative"
	VerdictNotNegative Verdict = "not_negative"
	VerdictError       Verdict = "error"
)

// FilterReason records why the local filter passed or rejected an item.
type FilterReason string

const (
	ReasonNoKeyword      FilterReason = "no_keyword_match"
	ReasonSentimentAbove FilterReason = "sentiment_above_threshold"
	ReasonPassed         FilterReason = "passed_to_llm"
)

// NewsItem is the canonical structure persisted by the store. IDs are stable
// across refetches so the same upstream headline never produces two records.
type NewsItem struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	URL            string       `json:"url"`
	Thumbnail      string       `json:"thumbnail,omitempty"`
	Extra          string       `json:"extra,omitempty"`
	MatchedKeyword string       `json:"matched_keyword"`
	LocalSentiment float64      `json:"local_sentiment"`
	FilterReason   FilterReason `json:"filter_reason"`
	LLMVerdict     Verdict      `json:"llm_verdict"`
	LLMConfidence  float64      `json:"llm_confidence"`
	PublishedAt    time.Time    `json:"published_at"`
	FetchedAt      time.Time    `json:"fetched_at"`
}
