package recurring

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/pkg/config"
)

func newDetector() *Detector {
	return NewDetector(config.DefaultAnalysisConfig(), slog.New(slog.DiscardHandler))
}

func charge(sessionID uuid.UUID, catID *uuid.UUID, desc string, amount float64, date time.Time) transactions.Transaction {
	return transactions.Transaction{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Date:        date,
		Description: desc,
		Amount:      decimal.NewFromFloat(amount),
		CategoryID:  catID,
	}
}

func TestDetectMonthlySubscription(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	// NETFLIX on roughly the same day for four months.
	var txns []transactions.Transaction
	for _, date := range []time.Time{
		time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	} {
		txns = append(txns, charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99, date))
	}

	charges := newDetector().Detect(txns, tax)
	require.Len(t, charges, 1)

	got := charges[0]
	assert.Equal(t, FrequencyMonthly, got.Frequency)
	assert.Equal(t, 4, got.OccurrenceCount)
	assert.Equal(t, "15.99", got.AverageAmount.String())
	assert.False(t, got.IsGrayCharge, "15.99 is above the gray-charge threshold")
	assert.Greater(t, got.Confidence, 0.7)
	assert.Equal(t, "Subscriptions", got.CategoryName)
}

func TestDetectWeeklyCadence(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var txns []transactions.Transaction
	for week := 0; week < 6; week++ {
		txns = append(txns, charge(sessionID, &subs.ID, "WEEKLY BOX", -24.99, start.AddDate(0, 0, week*7)))
	}

	charges := newDetector().Detect(txns, tax)
	require.Len(t, charges, 1)
	assert.Equal(t, FrequencyWeekly, charges[0].Frequency)
	assert.InDelta(t, 7, charges[0].FrequencyDays, 0.1)
}

func TestDetectFlagsGrayCharges(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	utilities, _ := tax.ByName("Utilities")
	sessionID := uuid.New()

	var txns []transactions.Transaction
	for month := 5; month <= 8; month++ {
		date := time.Date(2026, time.Month(month), 3, 0, 0, 0, 0, time.UTC)
		// Small and non-essential: gray.
		txns = append(txns, charge(sessionID, &subs.ID, "CLOUDSAVE PRO", -2.99, date))
		// Small but essential: not gray.
		txns = append(txns, charge(sessionID, &utilities.ID, "CITY WATER UTIL AUTOPAY", -4.99, date))
		// Non-essential but large: not gray.
		txns = append(txns, charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99, date))
	}

	charges := newDetector().Detect(txns, tax)
	require.Len(t, charges, 3)

	gray := map[string]bool{}
	for _, c := range charges {
		gray[c.DescriptionPattern] = c.IsGrayCharge
	}
	assert.True(t, gray["CLOUDSAVE PRO"])
	assert.False(t, gray["CITY WATER UTIL AUTOPAY"])
	assert.False(t, gray["NETFLIX.COM"])
}

func TestDetectRejectsIrregularGaps(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	sessionID := uuid.New()

	// Same merchant, wildly uneven spacing.
	var txns []transactions.Transaction
	for _, day := range []int{0, 3, 40, 45, 95} {
		txns = append(txns, charge(sessionID, &dining.ID, "CAFE CORNER",
			-8.50, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)))
	}

	assert.Empty(t, newDetector().Detect(txns, tax))
}

func TestDetectTwoOccurrencesSuffice(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	// Two charges 30 days apart: one gap, squarely in the monthly window.
	txns := []transactions.Transaction{
		charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)),
		charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)),
	}

	charges := newDetector().Detect(txns, tax)
	require.Len(t, charges, 1)
	assert.Equal(t, FrequencyMonthly, charges[0].Frequency)
	assert.Equal(t, 2, charges[0].OccurrenceCount)
	assert.Less(t, charges[0].Confidence, 0.8, "two occurrences score below a longer history")
}

func TestDetectRequiresMinimumOccurrences(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	txns := []transactions.Transaction{
		charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)),
	}

	assert.Empty(t, newDetector().Detect(txns, tax), "a single charge never recurs")
}

func TestDetectIDsAreStable(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	var txns []transactions.Transaction
	for month := 5; month <= 8; month++ {
		txns = append(txns, charge(sessionID, &subs.ID, "NETFLIX.COM", -15.99,
			time.Date(2026, time.Month(month), 15, 0, 0, 0, 0, time.UTC)))
	}

	first := newDetector().Detect(txns, tax)
	second := newDetector().Detect(txns, tax)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "same cluster in the same session keeps its ID")
	assert.Equal(t, first, second)
}

func TestDetectMergesMerchantVariants(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	// Store numbers differ per charge; the cluster key must not split.
	var txns []transactions.Transaction
	for month := 5; month <= 8; month++ {
		txns = append(txns, charge(sessionID, &subs.ID, "SPOTIFY #10293847",
			-10.99, time.Date(2026, time.Month(month), 7, 0, 0, 0, 0, time.UTC)))
	}

	charges := newDetector().Detect(txns, tax)
	require.Len(t, charges, 1)
	assert.Equal(t, 4, charges[0].OccurrenceCount)
}

func TestDetectIgnoresIncome(t *testing.T) {
	tax := taxonomy.Default()
	income, _ := tax.ByName("Income")
	sessionID := uuid.New()

	var txns []transactions.Transaction
	for month := 5; month <= 8; month++ {
		txns = append(txns, charge(sessionID, &income.ID, "PAYCHECK ACME",
			3200, time.Date(2026, time.Month(month), 1, 0, 0, 0, 0, time.UTC)))
	}

	assert.Empty(t, newDetector().Detect(txns, tax))
}
