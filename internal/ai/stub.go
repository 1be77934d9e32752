package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Stub is a deterministic in-process stand-in for the model backend. It keeps
// demo sessions and tests fully reproducible: the same input always yields the
// same categories and the same advice.
type Stub struct {
	// FailCategorize / FailSummarize force errors, for exercising fallbacks.
	FailCategorize bool
	FailSummarize  bool
}

var _ Categorizer = (*Stub)(nil)
var _ Summarizer = (*Stub)(nil)

var errStubForced = fmt.Errorf("stub: forced failure")

// CategorizeBatch maps descriptions to categories by keyword containment, then
// by a stable hash so unknown descriptions still land somewhere repeatable.
func (s *Stub) CategorizeBatch(_ context.Context, descriptions []string, categories []string) ([]CategoryGuess, error) {
	if s.FailCategorize {
		return nil, errStubForced
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("stub: no categories supplied")
	}

	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)

	guesses := make([]CategoryGuess, 0, len(descriptions))
	for _, desc := range descriptions {
		upper := strings.ToUpper(desc)
		guess := CategoryGuess{Description: desc, Category: "Uncategorized", Confidence: 0.5}
		for _, cat := range sorted {
			if strings.Contains(upper, strings.ToUpper(cat)) {
				guess.Category = cat
				guess.Confidence = 0.9
				break
			}
		}
		if guess.Category == "Uncategorized" {
			h := fnv.New32a()
			h.Write([]byte(upper))
			guess.Category = sorted[int(h.Sum32())%len(sorted)]
			guess.Confidence = 0.55
		}
		guesses = append(guesses, guess)
	}
	return guesses, nil
}

// GenerateInsights returns at most one draft, derived arithmetically from the
// stats, so template insights keep most of the slots.
func (s *Stub) GenerateInsights(_ context.Context, stats SpendingStats, limit int) ([]InsightDraft, error) {
	if s.FailSummarize {
		return nil, errStubForced
	}
	if limit <= 0 || stats.TotalSpending == 0 {
		return nil, nil
	}

	ratio := stats.TotalIncome / stats.TotalSpending
	desc := fmt.Sprintf("You spent $%.2f against $%.2f of income this period.", stats.TotalSpending, stats.TotalIncome)
	return []InsightDraft{{
		Type:        "ai_observation",
		Priority:    3,
		Title:       "Spending versus income",
		Description: desc,
		Action:      "Review your largest category for savings opportunities.",
		Reasoning:   fmt.Sprintf("Income covers spending %.1fx over.", ratio),
		Confidence:  0.6,
	}}, nil
}

// GoalAdvice returns a fixed-form sentence built from the forecast inputs.
func (s *Stub) GoalAdvice(_ context.Context, _ SpendingStats, target float64, achievable bool) (string, error) {
	if s.FailSummarize {
		return "", errStubForced
	}
	if achievable {
		return fmt.Sprintf("Saving $%.2f per month fits within your discretionary spending. Trim the suggested categories and automate the transfer on payday.", target), nil
	}
	return fmt.Sprintf("Saving $%.2f per month is ambitious for your current spending. Start with the suggested cuts and revisit the target next month.", target), nil
}
