// Package anomaly flags transactions that deviate from a session's own
// spending baselines. Detection is purely statistical; no model calls.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/pkg/config"
	pkgmoney "github.com/FACorreiaa/spending-coach/pkg/money"
)

// Type classifies what kind of deviation was detected.
type Type string

const (
	TypeAmount    Type = "amount"
	TypeFrequency Type = "frequency"
	TypeMerchant  Type = "merchant"
)

// Severity buckets the deviation magnitude.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is one flagged deviation. Every anomaly carries the expected value,
// the actual value, and a human-readable explanation of both.
type Anomaly struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     uuid.UUID       `json:"session_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	Type          Type            `json:"type"`
	Severity      Severity        `json:"severity"`
	ExpectedValue decimal.Decimal `json:"expected_value"`
	ActualValue   decimal.Decimal `json:"actual_value"`
	ZScore        float64         `json:"z_score"`
	Confidence    float64         `json:"confidence"`
	Explanation   string          `json:"explanation"`
}

// Detector computes per-category and per-merchant baselines from the session's
// transactions and flags deviations. Only spending (negative amounts) is
// analyzed; an unusual paycheck is not an anomaly.
type Detector struct {
	cfg    config.AnalysisConfig
	logger *slog.Logger
}

// NewDetector wires the anomaly stage.
func NewDetector(cfg config.AnalysisConfig, logger *slog.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// anomalyID derives a stable ID from the anomaly's identity, so re-running a
// session over the same transactions reproduces the same entities.
func anomalyID(sessionID uuid.UUID, kind Type, discriminator string) uuid.UUID {
	return uuid.NewSHA1(sessionID, []byte("anomaly:"+string(kind)+":"+discriminator))
}

// Detect runs all three detection types and returns anomalies sorted by
// severity (high first) then z-score.
func (d *Detector) Detect(txns []transactions.Transaction, tax *taxonomy.Taxonomy) []Anomaly {
	spending := make([]transactions.Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.IsSpending() {
			continue
		}
		if t.Magnitude().GreaterThan(decimal.NewFromFloat(d.cfg.MaxAnalysisAmount)) {
			// Amounts this large are transfers or data errors, not spending
			// to learn a baseline from.
			d.logger.Debug("excluding extreme amount from baselines",
				slog.String("transaction_id", t.ID.String()),
				slog.String("amount", t.Amount.String()))
			continue
		}
		spending = append(spending, t)
	}
	if len(spending) == 0 {
		return nil
	}

	anomalies := d.detectAmount(spending, tax)
	anomalies = append(anomalies, d.detectFrequency(spending)...)
	anomalies = append(anomalies, d.detectMerchant(spending)...)

	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].Severity != anomalies[j].Severity {
			return severityRank(anomalies[i].Severity) > severityRank(anomalies[j].Severity)
		}
		if anomalies[i].ZScore != anomalies[j].ZScore {
			return anomalies[i].ZScore > anomalies[j].ZScore
		}
		return anomalies[i].Explanation < anomalies[j].Explanation
	})
	return anomalies
}

// detectAmount flags charges far from their category's typical magnitude.
// Baselines are leave-one-out so a single huge charge cannot mask itself.
func (d *Detector) detectAmount(spending []transactions.Transaction, tax *taxonomy.Taxonomy) []Anomaly {
	byCategory := make(map[uuid.UUID][]transactions.Transaction)
	for _, t := range spending {
		if t.CategoryID == nil {
			continue
		}
		byCategory[*t.CategoryID] = append(byCategory[*t.CategoryID], t)
	}

	var anomalies []Anomaly
	for catID, group := range byCategory {
		if len(group) < d.cfg.MinCategorySamples {
			continue
		}

		categoryName := ""
		if c, ok := tax.ByID(catID); ok {
			categoryName = c.Name
		}

		var sum, sumSq float64
		for _, t := range group {
			mag, _ := t.Magnitude().Float64()
			sum += mag
			sumSq += mag * mag
		}
		n := float64(len(group))

		for _, t := range group {
			mag, _ := t.Magnitude().Float64()

			// Baseline over the other transactions in the category.
			restN := n - 1
			restMean := (sum - mag) / restN
			restVar := (sumSq-mag*mag)/restN - restMean*restMean
			if restVar < 0 {
				restVar = 0
			}
			restStd := math.Sqrt(restVar)

			var z float64
			switch {
			case restStd > 0:
				z = (mag - restMean) / restStd
			case restMean > 0 && mag > d.cfg.ZeroStddevRatio*restMean:
				// Identical historical amounts: treat a fixed multiple of the
				// mean as a hard trigger.
				z = d.cfg.ZScoreHigh
			default:
				continue
			}
			if z > d.cfg.ZScoreCap {
				z = d.cfg.ZScoreCap
			}
			if z < d.cfg.ZScoreLow {
				continue
			}

			severity := d.severityFor(z)
			catID := catID
			txnID := t.ID
			anomalies = append(anomalies, Anomaly{
				ID:            anomalyID(t.SessionID, TypeAmount, t.ID.String()),
				SessionID:     t.SessionID,
				TransactionID: &txnID,
				CategoryID:    &catID,
				CategoryName:  categoryName,
				Type:          TypeAmount,
				Severity:      severity,
				ExpectedValue: decimal.NewFromFloat(restMean).Round(2),
				ActualValue:   t.Magnitude(),
				ZScore:        round1(z),
				Confidence:    math.Min(1, math.Abs(z)/5),
				Explanation: fmt.Sprintf("You typically spend %s per %s charge; this one was %s (%.1f standard deviations above normal).",
					pkgmoney.DisplayFloat(restMean), categoryName, pkgmoney.DisplayAbs(t.Amount), z),
			})
		}
	}
	return anomalies
}

// detectFrequency flags merchants charging far more often than their
// established monthly cadence.
func (d *Detector) detectFrequency(spending []transactions.Transaction) []Anomaly {
	type merchantMonths struct {
		counts    map[string]int
		sessionID uuid.UUID
	}
	byMerchant := make(map[string]*merchantMonths)
	latestMonth := ""
	for _, t := range spending {
		key := transactions.MerchantKey(t.Description)
		if key == "" {
			continue
		}
		mm := byMerchant[key]
		if mm == nil {
			mm = &merchantMonths{counts: make(map[string]int), sessionID: t.SessionID}
			byMerchant[key] = mm
		}
		month := t.Month()
		mm.counts[month]++
		if month > latestMonth {
			latestMonth = month
		}
	}

	var anomalies []Anomaly
	for key, mm := range byMerchant {
		current := mm.counts[latestMonth]
		if current == 0 {
			continue
		}

		priorMonths := 0
		priorTotal := 0
		for month, count := range mm.counts {
			if month == latestMonth {
				continue
			}
			priorMonths++
			priorTotal += count
		}
		// A cadence needs history before a spike means anything.
		if priorMonths < 2 {
			continue
		}

		expected := float64(priorTotal) / float64(priorMonths)
		ratio := float64(current) / expected
		if ratio < 2 {
			continue
		}

		severity := SeverityMedium
		if ratio >= 3 {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, Anomaly{
			ID:            anomalyID(mm.sessionID, TypeFrequency, key+":"+latestMonth),
			SessionID:     mm.sessionID,
			Type:          TypeFrequency,
			Severity:      severity,
			ExpectedValue: decimal.NewFromFloat(expected).Round(1),
			ActualValue:   decimal.NewFromInt(int64(current)),
			ZScore:        round1(ratio),
			Confidence:    math.Min(1, ratio/4),
			Explanation: fmt.Sprintf("%s usually charges you about %.1f times a month; this month it charged %d times.",
				key, expected, current),
		})
	}
	return anomalies
}

// detectMerchant flags large first-time merchants: a never-before-seen vendor
// taking more than the session's 95th-percentile charge.
func (d *Detector) detectMerchant(spending []transactions.Transaction) []Anomaly {
	magnitudes := make([]float64, 0, len(spending))
	firstMonth := make(map[string]string)
	latestMonth := ""
	for _, t := range spending {
		mag, _ := t.Magnitude().Float64()
		magnitudes = append(magnitudes, mag)

		key := transactions.MerchantKey(t.Description)
		month := t.Month()
		if first, ok := firstMonth[key]; !ok || month < first {
			firstMonth[key] = month
		}
		if month > latestMonth {
			latestMonth = month
		}
	}
	if len(magnitudes) < d.cfg.MinCategorySamples {
		return nil
	}
	p95 := percentile(magnitudes, 0.95)

	var anomalies []Anomaly
	seen := make(map[string]bool)
	for _, t := range spending {
		key := transactions.MerchantKey(t.Description)
		if seen[key] || firstMonth[key] != latestMonth || t.Month() != latestMonth {
			continue
		}
		mag, _ := t.Magnitude().Float64()
		if mag < d.cfg.NewMerchantMinimum || mag < p95 {
			continue
		}
		seen[key] = true

		txnID := t.ID
		catID := t.CategoryID
		anomalies = append(anomalies, Anomaly{
			ID:            anomalyID(t.SessionID, TypeMerchant, key),
			SessionID:     t.SessionID,
			TransactionID: &txnID,
			CategoryID:    catID,
			Type:          TypeMerchant,
			Severity:      SeverityMedium,
			ExpectedValue: decimal.NewFromFloat(p95).Round(2),
			ActualValue:   t.Magnitude(),
			ZScore:        round1(mag / p95),
			Confidence:    0.6,
			Explanation: fmt.Sprintf("First charge from %s at %s, larger than 95%% of your spending (%s).",
				key, pkgmoney.DisplayAbs(t.Amount), pkgmoney.DisplayFloat(p95)),
		})
	}
	return anomalies
}

func (d *Detector) severityFor(z float64) Severity {
	switch {
	case z >= d.cfg.ZScoreHigh:
		return SeverityHigh
	case z >= d.cfg.ZScoreMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
