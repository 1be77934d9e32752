// Package goals forecasts whether a monthly savings target is reachable by
// cutting non-essential spending, and proposes the cuts.
package goals

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/ai"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/pkg/config"
	pkgmoney "github.com/FACorreiaa/spending-coach/pkg/money"
)

// Difficulty rates how painful a suggested cut is, by the share of the
// category it removes.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// CategoryCut is one suggested reduction in a non-essential category.
type CategoryCut struct {
	CategoryID         uuid.UUID       `json:"category_id"`
	CategoryName       string          `json:"category_name"`
	CurrentAmount      decimal.Decimal `json:"current_amount"`
	SuggestedReduction decimal.Decimal `json:"suggested_reduction"`
	Difficulty         Difficulty      `json:"difficulty"`
}

// Forecast answers "can I save this much per month, and how".
// GapAmount is nil when the target is met; otherwise it is the shortfall.
type Forecast struct {
	TargetAmount          decimal.Decimal  `json:"target_amount"`
	CurrentDiscretionary  decimal.Decimal  `json:"current_discretionary"`
	Achievable            bool             `json:"achievable"`
	SuggestedCuts         []CategoryCut    `json:"suggested_cuts"`
	TotalPotentialSavings decimal.Decimal  `json:"total_potential_savings"`
	GapAmount             *decimal.Decimal `json:"gap_amount,omitempty"`
	Advice                string           `json:"advice,omitempty"`
}

// Forecaster builds savings forecasts by greedily cutting the largest
// non-essential categories first.
type Forecaster struct {
	summarizer ai.Summarizer
	cfg        config.AnalysisConfig
	logger     *slog.Logger
}

// NewForecaster wires the goal stage.
func NewForecaster(summarizer ai.Summarizer, cfg config.AnalysisConfig, logger *slog.Logger) *Forecaster {
	return &Forecaster{summarizer: summarizer, cfg: cfg, logger: logger}
}

// Forecast evaluates a monthly savings target against average monthly
// non-essential spending. A zero or negative target is trivially achievable
// with no cuts.
func (f *Forecaster) Forecast(ctx context.Context, txns []transactions.Transaction, tax *taxonomy.Taxonomy, target decimal.Decimal) Forecast {
	monthly := monthlyNonEssential(txns, tax)

	discretionary := decimal.Zero
	for _, m := range monthly {
		discretionary = discretionary.Add(m.amount)
	}
	discretionary = discretionary.Round(2)

	if target.LessThanOrEqual(decimal.Zero) {
		return Forecast{
			TargetAmount:          target,
			CurrentDiscretionary:  discretionary,
			Achievable:            true,
			SuggestedCuts:         []CategoryCut{},
			TotalPotentialSavings: decimal.Zero,
		}
	}

	// Largest categories first: fewer, bigger cuts are easier to act on.
	sort.Slice(monthly, func(i, j int) bool {
		if !monthly[i].amount.Equal(monthly[j].amount) {
			return monthly[i].amount.GreaterThan(monthly[j].amount)
		}
		return monthly[i].category.Name < monthly[j].category.Name
	})

	cutRatio := decimal.NewFromFloat(f.cfg.DiscretionaryCutRatio)
	remaining := target
	cuts := make([]CategoryCut, 0, len(monthly))
	total := decimal.Zero

	for _, m := range monthly {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		reducible := m.amount.Mul(cutRatio).Round(2)
		if reducible.LessThanOrEqual(decimal.Zero) {
			continue
		}
		cut := decimal.Min(reducible, remaining)

		cuts = append(cuts, CategoryCut{
			CategoryID:         m.category.ID,
			CategoryName:       m.category.Name,
			CurrentAmount:      m.amount.Round(2),
			SuggestedReduction: cut,
			Difficulty:         difficultyFor(cut, m.amount),
		})
		total = total.Add(cut)
		remaining = remaining.Sub(cut)
	}

	forecast := Forecast{
		TargetAmount:          target,
		CurrentDiscretionary:  discretionary,
		Achievable:            remaining.LessThanOrEqual(decimal.Zero),
		SuggestedCuts:         cuts,
		TotalPotentialSavings: total.Round(2),
	}
	if !forecast.Achievable {
		gap := remaining.Round(2)
		forecast.GapAmount = &gap
	}

	forecast.Advice = f.advice(ctx, txns, tax, forecast)
	return forecast
}

// advice asks the summarizer for narrative advice and falls back to a fixed
// sentence when the model is unavailable.
func (f *Forecaster) advice(ctx context.Context, txns []transactions.Transaction, tax *taxonomy.Taxonomy, forecast Forecast) string {
	targetFloat, _ := forecast.TargetAmount.Float64()

	if f.summarizer != nil {
		stats := statsFor(txns, tax)
		advice, err := f.summarizer.GoalAdvice(ctx, stats, targetFloat, forecast.Achievable)
		if err == nil && advice != "" {
			return advice
		}
		if err != nil {
			f.logger.Warn("goal advice failed, using fallback", slog.Any("error", err))
		}
	}

	if forecast.Achievable {
		return fmt.Sprintf("Your goal of %s per month is within reach. Start with the easiest cuts and track progress weekly.",
			pkgmoney.Display(forecast.TargetAmount))
	}
	return fmt.Sprintf("Cutting non-essential spending gets you %s of the way to %s per month. Consider a smaller starting goal.",
		pkgmoney.Display(forecast.TotalPotentialSavings), pkgmoney.Display(forecast.TargetAmount))
}

type categorySpend struct {
	category taxonomy.Category
	amount   decimal.Decimal
}

// monthlyNonEssential averages spending per non-essential category over the
// months present in the session.
func monthlyNonEssential(txns []transactions.Transaction, tax *taxonomy.Taxonomy) []categorySpend {
	totals := make(map[uuid.UUID]decimal.Decimal)
	months := make(map[string]bool)
	for _, t := range txns {
		if !t.IsSpending() {
			continue
		}
		months[t.Month()] = true
		if t.CategoryID == nil {
			continue
		}
		c, ok := tax.ByID(*t.CategoryID)
		if !ok || c.IsEssential {
			continue
		}
		totals[c.ID] = totals[c.ID].Add(t.Magnitude())
	}
	if len(months) == 0 {
		return nil
	}

	monthCount := decimal.NewFromInt(int64(len(months)))
	out := make([]categorySpend, 0, len(totals))
	for id, total := range totals {
		c, _ := tax.ByID(id)
		out = append(out, categorySpend{category: c, amount: total.Div(monthCount).Round(2)})
	}
	return out
}

// difficultyFor rates a cut by the share of the category it removes.
func difficultyFor(cut, current decimal.Decimal) Difficulty {
	if current.IsZero() {
		return DifficultyEasy
	}
	share := cut.Div(current)
	switch {
	case share.LessThanOrEqual(decimal.NewFromFloat(0.3)):
		return DifficultyEasy
	case share.LessThanOrEqual(decimal.NewFromFloat(0.6)):
		return DifficultyModerate
	default:
		return DifficultyHard
	}
}

func statsFor(txns []transactions.Transaction, tax *taxonomy.Taxonomy) ai.SpendingStats {
	stats := ai.SpendingStats{ByCategory: make(map[string]float64)}
	for _, t := range txns {
		amount, _ := t.Amount.Float64()
		if t.IsSpending() {
			stats.TotalSpending += -amount
			if t.CategoryID != nil {
				if c, ok := tax.ByID(*t.CategoryID); ok {
					stats.ByCategory[c.Name] += -amount
				}
			}
		} else {
			stats.TotalIncome += amount
		}
	}
	return stats
}
