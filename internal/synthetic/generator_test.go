package synthetic

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

func TestGenerateIsDeterministic(t *testing.T) {
	sessionID := uuid.New()
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	a := NewGenerator(42).Generate(sessionID, 3, now)
	b := NewGenerator(42).Generate(sessionID, 3, now)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Description, b[i].Description)
		assert.True(t, a[i].Amount.Equal(b[i].Amount))
		assert.Equal(t, a[i].Date, b[i].Date)
	}
}

func TestGeneratePlantsPatterns(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	txns := NewGenerator(7).Generate(uuid.New(), 3, now)

	counts := map[string]int{}
	var sawAnomaly bool
	for _, txn := range txns {
		require.NoError(t, txn.Validate())
		counts[transactions.MerchantKey(txn.Description)]++
		if txn.Amount.IsNegative() && txn.Magnitude().GreaterThan(decimal.NewFromInt(1000)) {
			sawAnomaly = true
		}
	}

	assert.Equal(t, 3, counts["NETFLIX.COM"], "one netflix charge per month")
	assert.Equal(t, 3, counts["CLOUDSAVE PRO"], "gray charge recurs monthly")
	assert.Equal(t, 6, counts["PAYCHECK ACME CORP DIRECT DEP"], "two paychecks per month")
	assert.True(t, sawAnomaly, "a four-figure outlier is planted")
}

func TestGenerateSpansRequestedMonths(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	txns := NewGenerator(7).Generate(uuid.New(), 3, now)

	months := map[string]bool{}
	for _, txn := range txns {
		months[txn.Month()] = true
	}
	assert.Equal(t, map[string]bool{"2026-06": true, "2026-07": true, "2026-08": true}, months)
}
