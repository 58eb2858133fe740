// Package llm implements the semantic analyzer collaborator on top of the
// Anthropic Messages API. All failures — network, breaker, malformed model
// output — surface as engine.ErrAnalyzerUnavailable so the vector builder
// can degrade to its deterministic fallback.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"cinetaste/internal/analysis"
	"cinetaste/internal/engine"
	"cinetaste/internal/taxonomy"
)

// EmbedDim is the length of vectors returned by Embed.
const EmbedDim = 256

// Config tunes the analyzer boundary: model selection plus the timeout,
// retry, rate-limit and breaker policy wrapped around every call.
type Config struct {
	Model             string        `mapstructure:"model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Retries           int           `mapstructure:"retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// DefaultConfig returns the standard analyzer policy.
func DefaultConfig() Config {
	return Config{
		Model:             string(anthropic.ModelClaudeSonnet4_20250514),
		MaxTokens:         1024,
		Timeout:           10 * time.Second,
		Retries:           2,
		RequestsPerSecond: 2,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
	}
}

// MessageClient is the slice of the Anthropic client the analyzer needs.
// Tests substitute their own implementation.
type MessageClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type realMessageClient struct {
	messages *anthropic.MessageService
}

func (r *realMessageClient) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return r.messages.New(ctx, params)
}

// Claude is the Anthropic-backed semantic analyzer.
type Claude struct {
	client  MessageClient
	config  Config
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*anthropic.Message]
}

// New creates an analyzer using the given API key ("" lets the SDK read the
// environment).
func New(apiKey string, cfg Config) *Claude {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return NewWithClient(&realMessageClient{messages: &client.Messages}, cfg)
}

// NewWithClient creates an analyzer over a custom message client.
func NewWithClient(client MessageClient, cfg Config) *Claude {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultConfig().BreakerCooldown
	}

	breaker := gobreaker.NewCircuitBreaker[*anthropic.Message](gobreaker.Settings{
		Name:    "semantic-analyzer",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})

	return &Claude{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: breaker,
	}
}

// Analyze asks the model to score the text against every taxonomy tag and to
// list the tags the text explicitly rules out.
func (c *Claude) Analyze(ctx context.Context, text string, tax *taxonomy.Taxonomy) (*analysis.Analysis, error) {
	resp, err := c.invoke(ctx, analyzePrompt(tax), text)
	if err != nil {
		return nil, err
	}

	raw := extractJSONBlock(textContent(resp))
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON block in analyzer response", engine.ErrAnalyzerUnavailable)
	}

	var parsed analysis.Analysis
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed analyzer response: %v", engine.ErrAnalyzerUnavailable, err)
	}
	return &parsed, nil
}

// Embed returns a fixed-length vector for the text. The Messages API has no
// embedding endpoint, so this is served by the deterministic hash embedding;
// the method exists to keep the collaborator contract in one place.
func (c *Claude) Embed(_ context.Context, text string) ([]float64, error) {
	return analysis.FallbackEmbed(text, EmbedDim), nil
}

// invoke runs one analyzer call through the rate limiter, circuit breaker,
// per-attempt timeout, and bounded linear-backoff retries.
func (c *Claude) invoke(ctx context.Context, system, user string) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 1500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", engine.ErrAnalyzerUnavailable, ctx.Err())
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrAnalyzerUnavailable, err)
		}

		resp, err := c.breaker.Execute(func() (*anthropic.Message, error) {
			callCtx := ctx
			if c.config.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
				defer cancel()
			}
			return c.client.New(callCtx, anthropic.MessageNewParams{
				Model:     anthropic.Model(c.config.Model),
				MaxTokens: int64(c.config.MaxTokens),
				System: []anthropic.TextBlockParam{
					{Text: system},
				},
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
				},
			})
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// The breaker rejecting fast means the backend is known bad;
		// retrying inside this call only burns the caller's budget.
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", engine.ErrAnalyzerUnavailable, lastErr)
}

// analyzePrompt builds the system prompt carrying the taxonomy.
func analyzePrompt(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("당신은 영화 취향 분석 전문가입니다. ")
	b.WriteString("입력 텍스트를 분석하여 아래 택소노미의 모든 태그에 0.0~1.0 점수를 매기세요.\n\n")
	for _, cat := range taxonomy.Categories() {
		b.WriteString(cat)
		b.WriteString(": ")
		b.WriteString(strings.Join(tax.Tags(cat), ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n텍스트가 명시적으로 거부하는 태그는 exclude_tags에 넣으세요.\n")
	b.WriteString("다음 JSON 형식으로만 응답하세요:\n")
	b.WriteString(`{"category_scores": {"emotion": {"태그": 0.0}, "story_flow": {}, "direction_mood": {}, "character_relationship": {}}, ` +
		`"ending_preference": {"happy": 0.0, "open": 0.0, "bittersweet": 0.0}, "exclude_tags": []}`)
	return b.String()
}

func textContent(resp *anthropic.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// extractJSONBlock returns the first balanced top-level JSON object in text,
// which also covers fenced ```json blocks.
func extractJSONBlock(text string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
