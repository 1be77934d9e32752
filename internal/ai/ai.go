// Package ai defines the model-backed capabilities the pipeline can degrade
// without: batch categorization and natural-language summaries. Implementations
// must never receive raw transactions for summarization, only aggregates.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable means no model backend is configured. Callers fall back to
// deterministic behavior.
var ErrUnavailable = errors.New("ai: model backend not configured")

// CategoryGuess is one model answer for a description pattern.
type CategoryGuess struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// Categorizer assigns categories to transaction descriptions the rule engine
// could not match. Answers outside the provided category vocabulary are
// discarded by the caller.
type Categorizer interface {
	CategorizeBatch(ctx context.Context, descriptions []string, categories []string) ([]CategoryGuess, error)
}

// DeltaStat is a month-over-month movement included in summarizer input.
type DeltaStat struct {
	Category      string   `json:"category"`
	CurrentAmount float64  `json:"current_amount"`
	ChangeAmount  float64  `json:"change_amount"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// SpendingStats is the aggregated view handed to the summarizer. It carries no
// transaction identifiers, dates, or descriptions beyond category names.
type SpendingStats struct {
	TotalIncome     float64            `json:"total_income"`
	TotalSpending   float64            `json:"total_spending"`
	ByCategory      map[string]float64 `json:"by_category"`
	AnomalyCount    int                `json:"anomaly_count"`
	HighSeverity    int                `json:"high_severity_count"`
	RecurringCount  int                `json:"recurring_count"`
	GrayChargeTotal float64            `json:"gray_charge_total"`
	TopDeltas       []DeltaStat        `json:"top_deltas,omitempty"`
}

// InsightDraft is a model-authored insight before validation and ordering.
type InsightDraft struct {
	Type        string  `json:"type"`
	Priority    int     `json:"priority"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Action      string  `json:"action"`
	Reasoning   string  `json:"reasoning"`
	Confidence  float64 `json:"confidence"`
}

// Summarizer turns aggregated statistics into narrative insights and goal advice.
type Summarizer interface {
	GenerateInsights(ctx context.Context, stats SpendingStats, limit int) ([]InsightDraft, error)
	GoalAdvice(ctx context.Context, stats SpendingStats, target float64, achievable bool) (string, error)
}
