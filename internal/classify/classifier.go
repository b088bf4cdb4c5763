// Package classify asks a remote LLM for the final negative-news verdict on
// items that survived the local filter.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/retry"
)

const systemPrompt = "你是一个金融新闻分类助手。请判断用户提供的新闻是否描述了" +
	"与银行或金融机构相关的负面事件。只返回JSON，格式为" +
	` {"label": "negative|neutral|positive", "confidence": 0.0-1.0}.`

// Result is the classifier's judgment on one item. Verdict is error only when
// every attempt failed; error and not_negative are never conflated so failed
// classifications stay distinguishable and retryable.
type Result struct {
	Verdict    models.Verdict
	Confidence float64
	Reason     string
}

// Classifier calls an OpenAI-compatible chat endpoint with its own retry
// policy: fixed delay between attempts, independent of the upstream client's
// exponential backoff.
type Classifier struct {
	client  *openai.Client
	model   string
	policy  retry.Policy
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

// New builds a Classifier from config.
func New(cfg config.LLM, log *slog.Logger) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	return &Classifier{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		policy:  retry.FixedDelay(cfg.MaxRetries, cfg.RetryDelay),
		timeout: cfg.Timeout,
		limiter: limiter,
		log:     log,
	}
}

// Classify sends the item text to the model and maps the returned label to a
// verdict. Timeouts, transport errors and unparseable answers all consume the
// same retry budget; an exhausted budget yields VerdictError.
func (c *Classifier) Classify(ctx context.Context, title, description string) Result {
	text := title
	if description != "" {
		text += "。" + description
	}

	var verdict models.Verdict
	var confidence float64
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: 0,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion: no choices returned")
		}

		verdict, confidence, err = parseVerdict(resp.Choices[0].Message.Content)
		return err
	})
	if err != nil {
		c.log.Warn("classification failed", slog.String("title", title), slog.Any("err", err))
		return Result{Verdict: models.VerdictError, Reason: err.Error()}
	}

	return Result{Verdict: verdict, Confidence: confidence}
}

// parseVerdict extracts the {"label","confidence"} JSON from the model reply,
// tolerating code fences and surrounding prose.
func parseVerdict(content string) (models.Verdict, float64, error) {
	raw := extractJSON(content)
	if raw == "" {
		return "", 0, fmt.Errorf("no JSON object in model reply: %q", content)
	}

	var parsed struct {
		Label      string      `json:"label"`
		Confidence json.Number `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", 0, fmt.Errorf("decode model reply: %w", err)
	}

	confidence, _ := parsed.Confidence.Float64()
	switch strings.ToLower(strings.TrimSpace(parsed.Label)) {
	case "negative":
		return models.VerdictNegative, confidence, nil
	case "neutral", "positive", "not_negative":
		return models.VerdictNotNegative, confidence, nil
	default:
		return "", 0, fmt.Errorf("unknown label %q in model reply", parsed.Label)
	}
}

// extractJSON finds the JSON object inside a possibly fenced or chatty reply.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}
	return ""
}
