// Package recurring finds subscription-like charges by clustering transactions
// that share a merchant identity and charge on a regular cadence.
package recurring

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/categorization"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/pkg/config"
)

// Frequency is the detected charge cadence.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Cadence windows, in days between consecutive charges.
const (
	weeklyGapMin  = 5
	weeklyGapMax  = 9
	monthlyGapMin = 28
	monthlyGapMax = 31
)

// RecurringCharge is one detected recurring merchant.
type RecurringCharge struct {
	ID                 uuid.UUID       `json:"id"`
	SessionID          uuid.UUID       `json:"session_id"`
	DescriptionPattern string          `json:"description_pattern"`
	CategoryID         *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName       string          `json:"category_name,omitempty"`
	AverageAmount      decimal.Decimal `json:"average_amount"`
	Frequency          Frequency       `json:"frequency"`
	FrequencyDays      float64         `json:"frequency_days"`
	OccurrenceCount    int             `json:"occurrence_count"`
	FirstSeen          time.Time       `json:"first_seen"`
	LastSeen           time.Time       `json:"last_seen"`
	IsGrayCharge       bool            `json:"is_gray_charge"`
	Confidence         float64         `json:"confidence"`
}

// Detector clusters spending by merchant key and keeps the clusters whose
// charge gaps are regular enough to call a subscription.
type Detector struct {
	cfg    config.AnalysisConfig
	logger *slog.Logger
}

// NewDetector wires the recurring-charge stage.
func NewDetector(cfg config.AnalysisConfig, logger *slog.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// Detect returns recurring charges sorted by average amount descending.
func (d *Detector) Detect(txns []transactions.Transaction, tax *taxonomy.Taxonomy) []RecurringCharge {
	clusters := d.cluster(txns)

	var charges []RecurringCharge
	for key, group := range clusters {
		if charge, ok := d.evaluate(key, group, tax); ok {
			charges = append(charges, charge)
		}
	}

	sort.Slice(charges, func(i, j int) bool {
		if !charges[i].AverageAmount.Equal(charges[j].AverageAmount) {
			return charges[i].AverageAmount.GreaterThan(charges[j].AverageAmount)
		}
		return charges[i].DescriptionPattern < charges[j].DescriptionPattern
	})
	return charges
}

// cluster groups spending transactions by merchant key, then folds keys that
// are near-identical strings into the larger cluster. "SPOTIFY P" and
// "SPOTIFY PREM" are the same subscription.
func (d *Detector) cluster(txns []transactions.Transaction) map[string][]transactions.Transaction {
	clusters := make(map[string][]transactions.Transaction)
	for _, t := range txns {
		if !t.IsSpending() {
			continue
		}
		key := transactions.MerchantKey(t.Description)
		if key == "" {
			continue
		}
		clusters[key] = append(clusters[key], t)
	}

	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	// Largest clusters first so variants fold into the canonical spelling.
	sort.Slice(keys, func(i, j int) bool {
		if len(clusters[keys[i]]) != len(clusters[keys[j]]) {
			return len(clusters[keys[i]]) > len(clusters[keys[j]])
		}
		return keys[i] < keys[j]
	})

	merged := make(map[string][]transactions.Transaction, len(clusters))
	canonical := make([]string, 0, len(keys))
	for _, key := range keys {
		home := key
		for _, c := range canonical {
			if categorization.Similarity(key, c) >= d.cfg.ClusterFuzzScore {
				home = c
				break
			}
		}
		if home == key {
			canonical = append(canonical, key)
		}
		merged[home] = append(merged[home], clusters[key]...)
	}
	return merged
}

// evaluate decides whether one cluster is a recurring charge.
func (d *Detector) evaluate(key string, group []transactions.Transaction, tax *taxonomy.Taxonomy) (RecurringCharge, bool) {
	// Two occurrences give one gap, which is enough to place the cadence in a
	// window; a single charge never recurs.
	if len(group) < d.cfg.MinClusterSize {
		return RecurringCharge{}, false
	}

	sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

	gaps := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		gaps = append(gaps, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}
	gapMean, gapStd := meanStd(gaps)
	if gapMean <= 0 {
		return RecurringCharge{}, false
	}

	gapCV := gapStd / gapMean
	if gapCV > d.cfg.GapCVTolerance {
		return RecurringCharge{}, false
	}

	var frequency Frequency
	switch {
	case gapMean >= weeklyGapMin && gapMean <= weeklyGapMax:
		frequency = FrequencyWeekly
	case gapMean >= monthlyGapMin && gapMean <= monthlyGapMax:
		frequency = FrequencyMonthly
	default:
		return RecurringCharge{}, false
	}

	amounts := make([]float64, 0, len(group))
	sum := decimal.Zero
	for _, t := range group {
		mag, _ := t.Magnitude().Float64()
		amounts = append(amounts, mag)
		sum = sum.Add(t.Magnitude())
	}
	amountMean, amountStd := meanStd(amounts)
	average := sum.Div(decimal.NewFromInt(int64(len(group)))).Round(2)

	category, haveCategory := d.majorityCategory(group, tax)

	charge := RecurringCharge{
		ID:                 uuid.NewSHA1(group[0].SessionID, []byte("recurring:"+key)),
		SessionID:          group[0].SessionID,
		DescriptionPattern: key,
		AverageAmount:      average,
		Frequency:          frequency,
		FrequencyDays:      math.Round(gapMean*10) / 10,
		OccurrenceCount:    len(group),
		FirstSeen:          group[0].Date,
		LastSeen:           group[len(group)-1].Date,
		Confidence:         confidence(len(group), gapCV, amountStd, amountMean),
	}
	if haveCategory {
		id := category.ID
		charge.CategoryID = &id
		charge.CategoryName = category.Name
		charge.IsGrayCharge = !category.IsEssential &&
			average.LessThan(decimal.NewFromFloat(d.cfg.GrayChargeMax))
	}
	return charge, true
}

// majorityCategory picks the most common category across the cluster.
func (d *Detector) majorityCategory(group []transactions.Transaction, tax *taxonomy.Taxonomy) (taxonomy.Category, bool) {
	counts := make(map[uuid.UUID]int)
	for _, t := range group {
		if t.CategoryID != nil {
			counts[*t.CategoryID]++
		}
	}
	var bestID uuid.UUID
	best := 0
	for id, n := range counts {
		if n > best {
			best = n
			bestID = id
		}
	}
	if best == 0 {
		return taxonomy.Category{}, false
	}
	return tax.ByID(bestID)
}

// confidence blends cadence regularity, amount stability, and occurrence
// count: a year of identical charges scores near 1, three wobbly ones near 0.5.
func confidence(occurrences int, gapCV, amountStd, amountMean float64) float64 {
	gapConf := 1 - gapCV
	if gapConf < 0 {
		gapConf = 0
	}

	amountConf := 1.0
	if amountMean > 0 {
		amountConf = 1 - math.Min(1, amountStd/amountMean)
	}

	countConf := 0.5 + 0.5*math.Min(1, float64(occurrences)/5)

	c := gapConf * amountConf * countConf
	return math.Round(c*100) / 100
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
