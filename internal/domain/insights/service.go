// Package insights turns the pipeline's derived entities into a short ranked
// list of things worth telling the user.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/ai"
	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/deltas"
	"github.com/FACorreiaa/spending-coach/internal/domain/recurring"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/pkg/config"
	pkgmoney "github.com/FACorreiaa/spending-coach/pkg/money"
)

// Insight types. Template types are deterministic; ai_observation comes from
// the summarizer.
const (
	TypeGrayCharges   = "gray_charges"
	TypeAnomalies     = "anomalies"
	TypeSpendingTrend = "spending_trend"
	TypeTopCategory   = "top_category"
	TypeCashFlow      = "cash_flow"
	TypeAIObservation = "ai_observation"
)

// Priority levels: 1 needs attention, 2 worth knowing, 3 informational.
const (
	PriorityUrgent        = 1
	PriorityNotable       = 2
	PriorityInformational = 3
)

// Insight is one ranked observation. Reasoning explains which numbers the
// insight came from so it is never an unexplained verdict.
type Insight struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Type        string    `json:"type"`
	Priority    int       `json:"priority"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Action      string    `json:"action,omitempty"`
	Reasoning   string    `json:"reasoning"`
	Confidence  float64   `json:"confidence"`
}

// Input bundles everything earlier stages derived for one session.
type Input struct {
	SessionID    uuid.UUID
	Taxonomy     *taxonomy.Taxonomy
	Transactions []transactions.Transaction
	Anomalies    []anomaly.Anomaly
	Recurring    []recurring.RecurringCharge
	Deltas       []deltas.Delta
}

// Service generates insights: deterministic templates first, then the
// summarizer fills whatever slots remain. Summarizer failure means a shorter
// list, never a failed run.
type Service struct {
	summarizer ai.Summarizer
	cfg        config.AnalysisConfig
	logger     *slog.Logger
}

// NewService wires the insight stage.
func NewService(summarizer ai.Summarizer, cfg config.AnalysisConfig, logger *slog.Logger) *Service {
	return &Service{summarizer: summarizer, cfg: cfg, logger: logger}
}

// insightID derives a stable ID from the insight's identity, so re-running a
// session over the same transactions reproduces the same entities.
func insightID(sessionID uuid.UUID, insightType, title string) uuid.UUID {
	return uuid.NewSHA1(sessionID, []byte("insight:"+insightType+":"+title))
}

// Generate returns at most MaxInsights insights ordered by priority ascending,
// then confidence descending.
func (s *Service) Generate(ctx context.Context, in Input) []Insight {
	list := s.templates(in)

	remaining := s.cfg.MaxInsights - len(list)
	if remaining > 0 && s.summarizer != nil {
		drafts, err := s.summarizer.GenerateInsights(ctx, Stats(in), remaining)
		if err != nil {
			s.logger.Warn("summarizer failed, templates only", slog.Any("error", err))
		}
		for _, d := range drafts {
			if ins, ok := s.fromDraft(in.SessionID, d); ok {
				list = append(list, ins)
			}
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Confidence > list[j].Confidence
	})
	if len(list) > s.cfg.MaxInsights {
		list = list[:s.cfg.MaxInsights]
	}
	return list
}

// templates builds the deterministic insight set.
func (s *Service) templates(in Input) []Insight {
	var list []Insight

	if ins, ok := s.grayChargeInsight(in); ok {
		list = append(list, ins)
	}
	if ins, ok := s.anomalyInsight(in); ok {
		list = append(list, ins)
	}
	if ins, ok := s.trendInsight(in); ok {
		list = append(list, ins)
	}
	if ins, ok := s.topCategoryInsight(in); ok {
		list = append(list, ins)
	}
	if ins, ok := s.cashFlowInsight(in); ok {
		list = append(list, ins)
	}
	return list
}

func (s *Service) grayChargeInsight(in Input) (Insight, bool) {
	count := 0
	monthly := decimal.Zero
	for _, r := range in.Recurring {
		if r.IsGrayCharge {
			count++
			monthly = monthly.Add(r.AverageAmount)
		}
	}
	if count == 0 {
		return Insight{}, false
	}

	yearly := monthly.Mul(decimal.NewFromInt(12))
	title := fmt.Sprintf("%d small recurring charges are draining your account", count)
	return Insight{
		ID:        insightID(in.SessionID, TypeGrayCharges, title),
		SessionID: in.SessionID,
		Type:      TypeGrayCharges,
		Priority:  PriorityUrgent,
		Title:     title,
		Description: fmt.Sprintf("Gray charges add up to %s per month (%s per year).",
			pkgmoney.Display(monthly), pkgmoney.Display(yearly)),
		Action: "Cancel the subscriptions you no longer use.",
		Reasoning: fmt.Sprintf("%d recurring charges under %s each were found in non-essential categories.",
			count, pkgmoney.DisplayFloat(s.cfg.GrayChargeMax)),
		Confidence: 0.95,
	}, true
}

func (s *Service) anomalyInsight(in Input) (Insight, bool) {
	high := 0
	for _, a := range in.Anomalies {
		if a.Severity == anomaly.SeverityHigh {
			high++
		}
	}
	if high == 0 {
		return Insight{}, false
	}

	title := fmt.Sprintf("%d unusual transactions need a look", high)
	return Insight{
		ID:        insightID(in.SessionID, TypeAnomalies, title),
		SessionID: in.SessionID,
		Type:      TypeAnomalies,
		Priority:  PriorityUrgent,
		Title:     title,
		Description: fmt.Sprintf("%d charges deviate strongly from your normal spending patterns.",
			high),
		Action:     "Review the flagged transactions for fraud or one-off mistakes.",
		Reasoning:  "High-severity anomalies are at least three standard deviations from your category baseline.",
		Confidence: 0.9,
	}, true
}

func (s *Service) trendInsight(in Input) (Insight, bool) {
	for _, d := range in.Deltas {
		if d.ChangePercent == nil || *d.ChangePercent < s.cfg.DeltaInsightThreshold {
			continue
		}
		title := fmt.Sprintf("%s spending is up %.0f%%", d.CategoryName, *d.ChangePercent)
		return Insight{
			ID:        insightID(in.SessionID, TypeSpendingTrend, title),
			SessionID: in.SessionID,
			Type:      TypeSpendingTrend,
			Priority:  PriorityNotable,
			Title:     title,
			Description: fmt.Sprintf("You spent %s on %s this month, up from %s.",
				pkgmoney.Display(d.CurrentAmount), d.CategoryName, pkgmoney.Display(d.PreviousAmount)),
			Action: fmt.Sprintf("Check what changed in %s this month.", d.CategoryName),
			Reasoning: fmt.Sprintf("Month-over-month change of %s exceeds the %.0f%% alert threshold.",
				pkgmoney.Display(d.ChangeAmount), s.cfg.DeltaInsightThreshold),
			Confidence: 0.85,
		}, true
	}
	return Insight{}, false
}

func (s *Service) topCategoryInsight(in Input) (Insight, bool) {
	totals := make(map[uuid.UUID]decimal.Decimal)
	spending := decimal.Zero
	for _, t := range in.Transactions {
		if !t.IsSpending() || t.CategoryID == nil {
			continue
		}
		totals[*t.CategoryID] = totals[*t.CategoryID].Add(t.Magnitude())
		spending = spending.Add(t.Magnitude())
	}
	if spending.IsZero() {
		return Insight{}, false
	}

	var topID uuid.UUID
	top := decimal.Zero
	for id, total := range totals {
		if total.GreaterThan(top) {
			top = total
			topID = id
		}
	}
	name := ""
	if c, ok := in.Taxonomy.ByID(topID); ok {
		name = c.Name
	}
	share, _ := top.Div(spending).Mul(decimal.NewFromInt(100)).Round(0).Float64()

	title := fmt.Sprintf("%s is your biggest spending category", name)
	return Insight{
		ID:        insightID(in.SessionID, TypeTopCategory, title),
		SessionID: in.SessionID,
		Type:      TypeTopCategory,
		Priority:  PriorityInformational,
		Title:     title,
		Description: fmt.Sprintf("%s of spending went to %s (%.0f%% of the total).",
			pkgmoney.Display(top), name, share),
		Reasoning:  fmt.Sprintf("Total spending was %s across %d categories.", pkgmoney.Display(spending), len(totals)),
		Confidence: 0.9,
	}, true
}

func (s *Service) cashFlowInsight(in Input) (Insight, bool) {
	income := decimal.Zero
	spending := decimal.Zero
	for _, t := range in.Transactions {
		if t.IsSpending() {
			spending = spending.Add(t.Magnitude())
		} else {
			income = income.Add(t.Amount)
		}
	}
	if income.IsZero() && spending.IsZero() {
		return Insight{}, false
	}

	net := income.Sub(spending)
	if net.IsNegative() {
		return Insight{
			ID:        insightID(in.SessionID, TypeCashFlow, "You spent more than you earned"),
			SessionID: in.SessionID,
			Type:      TypeCashFlow,
			Priority:  PriorityUrgent,
			Title:     "You spent more than you earned",
			Description: fmt.Sprintf("Spending exceeded income by %s over this period.",
				pkgmoney.DisplayAbs(net)),
			Action: "Look at the suggested cuts to get back to positive.",
			Reasoning: fmt.Sprintf("Income %s minus spending %s is %s.",
				pkgmoney.Display(income), pkgmoney.Display(spending), pkgmoney.Display(net)),
			Confidence: 0.95,
		}, true
	}

	return Insight{
		ID:        insightID(in.SessionID, TypeCashFlow, "Your cash flow is positive"),
		SessionID: in.SessionID,
		Type:      TypeCashFlow,
		Priority:  PriorityInformational,
		Title:     "Your cash flow is positive",
		Description: fmt.Sprintf("You kept %s after spending this period.",
			pkgmoney.Display(net)),
		Action: "Consider moving the surplus into savings.",
		Reasoning: fmt.Sprintf("Income %s minus spending %s is %s.",
			pkgmoney.Display(income), pkgmoney.Display(spending), pkgmoney.Display(net)),
		Confidence: 0.9,
	}, true
}

// fromDraft validates a summarizer draft. Drafts with missing text are
// dropped; priority and confidence are clamped into range.
func (s *Service) fromDraft(sessionID uuid.UUID, d ai.InsightDraft) (Insight, bool) {
	if d.Title == "" || d.Description == "" {
		return Insight{}, false
	}

	priority := d.Priority
	if priority < PriorityUrgent {
		priority = PriorityUrgent
	}
	if priority > PriorityInformational {
		priority = PriorityInformational
	}

	confidence := d.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	insightType := d.Type
	if insightType == "" {
		insightType = TypeAIObservation
	}

	return Insight{
		ID:          insightID(sessionID, insightType, d.Title),
		SessionID:   sessionID,
		Type:        insightType,
		Priority:    priority,
		Title:       d.Title,
		Description: d.Description,
		Action:      d.Action,
		Reasoning:   d.Reasoning,
		Confidence:  confidence,
	}, true
}

// Stats aggregates the session into the only view the summarizer may see:
// totals and counts, no raw transactions.
func Stats(in Input) ai.SpendingStats {
	stats := ai.SpendingStats{ByCategory: make(map[string]float64)}

	for _, t := range in.Transactions {
		amount, _ := t.Amount.Float64()
		if t.IsSpending() {
			stats.TotalSpending += -amount
			if t.CategoryID != nil {
				if c, ok := in.Taxonomy.ByID(*t.CategoryID); ok {
					stats.ByCategory[c.Name] += -amount
				}
			}
		} else {
			stats.TotalIncome += amount
		}
	}

	stats.AnomalyCount = len(in.Anomalies)
	for _, a := range in.Anomalies {
		if a.Severity == anomaly.SeverityHigh {
			stats.HighSeverity++
		}
	}

	stats.RecurringCount = len(in.Recurring)
	for _, r := range in.Recurring {
		if r.IsGrayCharge {
			amount, _ := r.AverageAmount.Float64()
			stats.GrayChargeTotal += amount
		}
	}

	for i, d := range in.Deltas {
		if i >= 3 {
			break
		}
		current, _ := d.CurrentAmount.Float64()
		change, _ := d.ChangeAmount.Float64()
		stats.TopDeltas = append(stats.TopDeltas, ai.DeltaStat{
			Category:      d.CategoryName,
			CurrentAmount: current,
			ChangeAmount:  change,
			ChangePercent: d.ChangePercent,
		})
	}

	return stats
}
