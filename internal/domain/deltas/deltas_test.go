package deltas

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

func spend(catID uuid.UUID, amount float64, date time.Time) transactions.Transaction {
	return transactions.Transaction{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Date:       date,
		Amount:     decimal.NewFromFloat(amount),
		CategoryID: &catID,
	}
}

func TestCalculate(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	groceries, _ := tax.ByName("Groceries")

	july := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	august := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	txns := []transactions.Transaction{
		spend(dining.ID, -100, july),
		spend(dining.ID, -150, august),
		spend(groceries.ID, -400, july),
		spend(groceries.ID, -300, august),
	}

	deltas := Calculate(txns, tax)
	require.Len(t, deltas, 2)

	byName := map[string]Delta{}
	for _, d := range deltas {
		byName[d.CategoryName] = d
	}

	diningDelta := byName["Dining"]
	assert.Equal(t, "150", diningDelta.CurrentAmount.String())
	assert.Equal(t, "100", diningDelta.PreviousAmount.String())
	assert.Equal(t, "50", diningDelta.ChangeAmount.String())
	require.NotNil(t, diningDelta.ChangePercent)
	assert.InDelta(t, 50, *diningDelta.ChangePercent, 0.01)

	groceriesDelta := byName["Groceries"]
	assert.Equal(t, "-100", groceriesDelta.ChangeAmount.String())
	require.NotNil(t, groceriesDelta.ChangePercent)
	assert.InDelta(t, -25, *groceriesDelta.ChangePercent, 0.01)
}

func TestCalculateNilPercentWhenNoPriorSpending(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")
	shopping, _ := tax.ByName("Shopping")

	txns := []transactions.Transaction{
		spend(dining.ID, -50, time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)),
		// Shopping only exists in the current month.
		spend(shopping.ID, -200, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)),
		spend(dining.ID, -60, time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)),
	}

	deltas := Calculate(txns, tax)
	require.Len(t, deltas, 2)

	for _, d := range deltas {
		if d.CategoryName == "Shopping" {
			assert.Nil(t, d.ChangePercent)
			assert.Equal(t, "200", d.ChangeAmount.String())
		}
	}
}

func TestCalculateSingleMonthYieldsNothing(t *testing.T) {
	tax := taxonomy.Default()
	dining, _ := tax.ByName("Dining")

	txns := []transactions.Transaction{
		spend(dining.ID, -50, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)),
		spend(dining.ID, -60, time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC)),
	}

	assert.Empty(t, Calculate(txns, tax))
}

func TestCalculateIgnoresIncome(t *testing.T) {
	tax := taxonomy.Default()
	income, _ := tax.ByName("Income")
	dining, _ := tax.ByName("Dining")

	txns := []transactions.Transaction{
		spend(dining.ID, -50, time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)),
		spend(dining.ID, -70, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)),
		{ID: uuid.New(), SessionID: uuid.New(), Date: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewFromInt(3200), CategoryID: &income.ID},
	}

	deltas := Calculate(txns, tax)
	require.Len(t, deltas, 1)
	assert.Equal(t, "Dining", deltas[0].CategoryName)
}
