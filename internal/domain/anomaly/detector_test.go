package anomaly

import (
	"fmt"
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

func spendTxn(sessionID uuid.UUID, catID uuid.UUID, desc string, amount float64, date time.Time) transactions.Transaction {
	return transactions.Transaction{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Date:        date,
		Description: desc,
		Amount:      decimal.NewFromFloat(amount),
		CategoryID:  &catID,
		Source:      transactions.SourceRule,
	}
}

func TestDetectAmountOutlier(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	sessionID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Ten charges near $20 with a small spread, plus one $80 charge.
	amounts := []float64{18, 19, 20, 21, 22, 18.5, 19.5, 20.5, 21.5, 20}
	var txns []transactions.Transaction
	for i, a := range amounts {
		txns = append(txns, spendTxn(sessionID, dining.ID, fmt.Sprintf("CAFE %d", i), -a, base.AddDate(0, 0, i)))
	}
	txns = append(txns, spendTxn(sessionID, dining.ID, "CAFE SPLURGE", -80, base.AddDate(0, 0, 12)))

	anomalies := newDetector().Detect(txns, tax)
	require.NotEmpty(t, anomalies)

	found := anomalies[0]
	assert.Equal(t, TypeAmount, found.Type)
	assert.Equal(t, SeverityHigh, found.Severity)
	assert.Equal(t, "80", found.ActualValue.String())
	expected, _ := found.ExpectedValue.Float64()
	assert.InDelta(t, 20, expected, 1)
	assert.GreaterOrEqual(t, found.ZScore, 3.0)
	assert.LessOrEqual(t, found.ZScore, 10.0) // capped
	assert.NotEmpty(t, found.Explanation)
	assert.InDelta(t, 1.0, found.Confidence, 0.001)
}

func TestDetectSkipsSmallSamples(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	sessionID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Four charges is below the minimum sample size.
	txns := []transactions.Transaction{
		spendTxn(sessionID, dining.ID, "CAFE A", -20, base),
		spendTxn(sessionID, dining.ID, "CAFE B", -21, base.AddDate(0, 0, 1)),
		spendTxn(sessionID, dining.ID, "CAFE C", -19, base.AddDate(0, 0, 2)),
		spendTxn(sessionID, dining.ID, "CAFE D", -500, base.AddDate(0, 0, 3)),
	}

	assert.Empty(t, newDetector().Detect(txns, tax))
}

func TestDetectZeroStddevBaseline(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Identical amounts, then one charge far above the fixed-ratio trigger.
	var txns []transactions.Transaction
	for i := 0; i < 6; i++ {
		txns = append(txns, spendTxn(sessionID, subs.ID, fmt.Sprintf("SVC %d", i), -9.99, base.AddDate(0, 0, i)))
	}
	txns = append(txns, spendTxn(sessionID, subs.ID, "SVC SPIKE", -59.99, base.AddDate(0, 0, 10)))

	anomalies := newDetector().Detect(txns, tax)
	require.NotEmpty(t, anomalies)
	assert.Equal(t, TypeAmount, anomalies[0].Type)
	assert.Equal(t, "59.99", anomalies[0].ActualValue.String())
}

func TestDetectIgnoresIncomeAndExtremes(t *testing.T) {
	tax := taxonomy.Default()
	income, _ := tax.ByName("Income")
	housing, _ := tax.ByName("Housing")
	sessionID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var txns []transactions.Transaction
	// Large income swings are not anomalies.
	for i := 0; i < 6; i++ {
		amount := 3200.0
		if i == 5 {
			amount = 25000
		}
		t2 := spendTxn(sessionID, income.ID, "PAYCHECK", amount, base.AddDate(0, 0, i))
		t2.Amount = decimal.NewFromFloat(amount)
		txns = append(txns, t2)
	}
	// Amounts above the analysis ceiling never enter baselines.
	for i := 0; i < 6; i++ {
		txns = append(txns, spendTxn(sessionID, housing.ID, "WIRE", -60000, base.AddDate(0, 0, i)))
	}

	assert.Empty(t, newDetector().Detect(txns, tax))
}

func TestDetectFrequencySpike(t *testing.T) {
	tax := taxonomy.Default()
	subs, _ := tax.ByName("Subscriptions")
	sessionID := uuid.New()

	var txns []transactions.Transaction
	// One charge a month for two months, then six in the latest month.
	txns = append(txns, spendTxn(sessionID, subs.ID, "STREAMCO", -9.99, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)))
	txns = append(txns, spendTxn(sessionID, subs.ID, "STREAMCO", -9.99, time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)))
	for day := 1; day <= 6; day++ {
		txns = append(txns, spendTxn(sessionID, subs.ID, "STREAMCO", -9.99, time.Date(2026, 7, day, 0, 0, 0, 0, time.UTC)))
	}

	anomalies := newDetector().Detect(txns, tax)

	var freq *Anomaly
	for i := range anomalies {
		if anomalies[i].Type == TypeFrequency {
			freq = &anomalies[i]
			break
		}
	}
	require.NotNil(t, freq)
	assert.Equal(t, SeverityHigh, freq.Severity)
	assert.Equal(t, "6", freq.ActualValue.String())
	assert.Contains(t, freq.Explanation, "STREAMCO")
}

func TestDetectNewMerchantAnomaly(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	shopping, _ := tax.ByName("Shopping")
	sessionID := uuid.New()

	var txns []transactions.Transaction
	for month := 5; month <= 7; month++ {
		for day := 1; day <= 4; day++ {
			txns = append(txns, spendTxn(sessionID, dining.ID, "CAFE REGULAR",
				-20, time.Date(2026, time.Month(month), day, 0, 0, 0, 0, time.UTC)))
		}
	}
	// Brand new merchant, far above every other charge.
	txns = append(txns, spendTxn(sessionID, shopping.ID, "LUXE BOUTIQUE",
		-1487.99, time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)))

	anomalies := newDetector().Detect(txns, tax)

	var merchant *Anomaly
	for i := range anomalies {
		if anomalies[i].Type == TypeMerchant {
			merchant = &anomalies[i]
			break
		}
	}
	require.NotNil(t, merchant)
	assert.Equal(t, "1487.99", merchant.ActualValue.String())
	assert.Contains(t, merchant.Explanation, "LUXE BOUTIQUE")
}

func TestDetectSortsBySeverity(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	sessionID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var txns []transactions.Transaction
	for i := 0; i < 10; i++ {
		txns = append(txns, spendTxn(sessionID, dining.ID, fmt.Sprintf("CAFE %d", i), -20+float64(i%3), base.AddDate(0, 0, i)))
	}
	txns = append(txns, spendTxn(sessionID, dining.ID, "MILD", -24, base.AddDate(0, 0, 11)))
	txns = append(txns, spendTxn(sessionID, dining.ID, "WILD", -80, base.AddDate(0, 0, 12)))

	anomalies := newDetector().Detect(txns, tax)
	require.NotEmpty(t, anomalies)
	for i := 1; i < len(anomalies); i++ {
		assert.GreaterOrEqual(t, severityRank(anomalies[i-1].Severity), severityRank(anomalies[i].Severity))
	}
}

func TestDetectIDsAreStable(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	sessionID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var txns []transactions.Transaction
	for i, a := range []float64{18, 19, 20, 21, 22, 18.5, 19.5, 20.5, 21.5, 20} {
		txns = append(txns, spendTxn(sessionID, dining.ID, fmt.Sprintf("CAFE %d", i), -a, base.AddDate(0, 0, i)))
	}
	txns = append(txns, spendTxn(sessionID, dining.ID, "CAFE SPLURGE", -80, base.AddDate(0, 0, 12)))

	first := newDetector().Detect(txns, tax)
	second := newDetector().Detect(txns, tax)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "same transactions must reproduce the same anomalies, IDs included")
	assert.NotEqual(t, uuid.Nil, first[0].ID)
}
