package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/FACorreiaa/spending-coach/pkg/config"
)

// Gemini implements Categorizer and Summarizer against the Gemini API.
// Every call is bounded by the configured timeout and retried exactly once;
// after that the error surfaces and the caller degrades.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGemini builds a Gemini client. Returns ErrUnavailable when no API key is
// configured so callers can wire the deterministic stub instead.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.CallTimeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}, nil
}

// CategorizeBatch asks the model to map each description onto one of the given
// category names.
func (g *Gemini) CategorizeBatch(ctx context.Context, descriptions []string, categories []string) ([]CategoryGuess, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(`You are a bank transaction categorizer.
Assign each transaction description below to exactly one of these categories:
%s

Descriptions:
%s

Respond with ONLY a JSON array, one object per description, in the same order:
[{"description": "...", "category": "...", "confidence": 0.0}]
confidence is your certainty from 0 to 1. Use "Uncategorized" when unsure.`,
		strings.Join(categories, ", "),
		"- "+strings.Join(descriptions, "\n- "))

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var guesses []CategoryGuess
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &guesses); err != nil {
		return nil, fmt.Errorf("parsing categorization response: %w", err)
	}
	return guesses, nil
}

// GenerateInsights asks the model for up to limit insights from aggregates only.
func (g *Gemini) GenerateInsights(ctx context.Context, stats SpendingStats, limit int) ([]InsightDraft, error) {
	if limit <= 0 {
		return nil, nil
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}

	prompt := fmt.Sprintf(`You are a personal spending coach. Here are aggregated
statistics for one user's recent transactions (no raw data is available to you):

%s

Write up to %d short, actionable insights. Respond with ONLY a JSON array:
[{"type": "ai_observation", "priority": 2, "title": "...", "description": "...",
  "action": "...", "reasoning": "...", "confidence": 0.0}]
priority is 1 (urgent) to 3 (informational). reasoning must cite the numbers above.`,
		payload, limit)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var drafts []InsightDraft
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &drafts); err != nil {
		return nil, fmt.Errorf("parsing insights response: %w", err)
	}
	if len(drafts) > limit {
		drafts = drafts[:limit]
	}
	return drafts, nil
}

// GoalAdvice produces a short narrative for a savings goal forecast.
func (g *Gemini) GoalAdvice(ctx context.Context, stats SpendingStats, target float64, achievable bool) (string, error) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("encoding stats: %w", err)
	}

	verdict := "is achievable"
	if !achievable {
		verdict = "is not fully achievable"
	}

	prompt := fmt.Sprintf(`A user wants to save %.2f per month. Based on these
aggregated statistics the goal %s:

%s

Write 2-3 sentences of encouraging, concrete advice. Plain text only.`,
		target, verdict, payload)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// generate runs one model call with timeout, rate limiting, and a single retry.
func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(prompt), nil)
		cancel()
		if err == nil {
			text := resp.Text()
			if text != "" {
				return text, nil
			}
			err = fmt.Errorf("empty model response")
		}

		lastErr = err
		g.logger.Warn("model call failed", slog.Int("attempt", attempt+1), slog.Any("error", err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("model call failed after retry: %w", lastErr)
}

// cleanModelJSON strips markdown code fences models wrap JSON in.
func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
