// Package filter implements the cheap deterministic gate that runs before any
// LLM call: keyword matching plus a local sentiment score against a threshold.
package filter

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/bad-news-radar/internal/models"
)

var tags = regexp.MustCompile(`<[^>]*>`)

// Decision is the local filter's output for one item.
type Decision struct {
	Passed         bool
	Reason         models.FilterReason
	Sentiment      float64
	MatchedKeyword string
}

// Evaluate is a pure function: the same title/description/keywords/threshold
// always yields the same decision. An item passes only when at least one
// keyword matches and the sentiment score is at or below the threshold.
func Evaluate(title, description string, keywords []string, threshold float64) Decision {
	text := CleanText(title + "。" + description)
	sentiment := Score(text)

	matched, ok := matchKeyword(text, keywords)
	if !ok {
		return Decision{Reason: models.ReasonNoKeyword, Sentiment: sentiment}
	}
	if sentiment > threshold {
		return Decision{Reason: models.ReasonSentimentAbove, Sentiment: sentiment, MatchedKeyword: matched}
	}

	return Decision{
		Passed:         true,
		Reason:         models.ReasonPassed,
		Sentiment:      sentiment,
		MatchedKeyword: matched,
	}
}

// CleanText strips HTML tags and entities and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = tags.ReplaceAllString(decoded, " ")
	// Fields is unicode-aware, so entities like &nbsp; collapse too.
	return strings.Join(strings.Fields(decoded), " ")
}

// matchKeyword returns the first configured keyword contained in the text,
// case-insensitively.
func matchKeyword(text string, keywords []string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(lowered, normalized) {
			return strings.TrimSpace(keyword), true
		}
	}
	return "", false
}

// ItemID derives a stable identifier for an upstream item so refetching the
// same headline maps to the same stored record. The URL is the most stable
// field; title+timestamp is the fallback, a random UUID the last resort.
func ItemID(url, title string, published time.Time) string {
	if url != "" {
		return hash(url)
	}
	if title != "" {
		return hash(title + "|" + published.UTC().Format(time.RFC3339))
	}
	return uuid.NewString()
}

func hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
