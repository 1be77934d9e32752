// Package deltas computes month-over-month spending movement per category.
package deltas

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

// Delta is one category's movement between the two most recent calendar months
// in the session. ChangePercent is nil when the previous month had no spending
// in the category; a percentage against zero is undefined, not infinite.
type Delta struct {
	CategoryID     uuid.UUID       `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	CurrentMonth   string          `json:"current_month"`
	PreviousMonth  string          `json:"previous_month"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
	ChangePercent  *float64        `json:"change_percent,omitempty"`
}

// Calculate compares spending in the latest month against the month before it.
// Categories present in either month appear in the result; sessions spanning a
// single month yield nothing.
func Calculate(txns []transactions.Transaction, tax *taxonomy.Taxonomy) []Delta {
	// month -> category -> total spending magnitude
	byMonth := make(map[string]map[uuid.UUID]decimal.Decimal)
	for _, t := range txns {
		if !t.IsSpending() || t.CategoryID == nil {
			continue
		}
		month := t.Month()
		if byMonth[month] == nil {
			byMonth[month] = make(map[uuid.UUID]decimal.Decimal)
		}
		byMonth[month][*t.CategoryID] = byMonth[month][*t.CategoryID].Add(t.Magnitude())
	}
	if len(byMonth) < 2 {
		return nil
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	current, previous := months[len(months)-1], months[len(months)-2]

	ids := make(map[uuid.UUID]bool)
	for id := range byMonth[current] {
		ids[id] = true
	}
	for id := range byMonth[previous] {
		ids[id] = true
	}

	deltas := make([]Delta, 0, len(ids))
	for id := range ids {
		currentAmount := byMonth[current][id]
		previousAmount := byMonth[previous][id]

		d := Delta{
			CategoryID:     id,
			CurrentMonth:   current,
			PreviousMonth:  previous,
			CurrentAmount:  currentAmount.Round(2),
			PreviousAmount: previousAmount.Round(2),
			ChangeAmount:   currentAmount.Sub(previousAmount).Round(2),
		}
		if c, ok := tax.ByID(id); ok {
			d.CategoryName = c.Name
		}
		if !previousAmount.IsZero() {
			pct, _ := d.ChangeAmount.Div(previousAmount).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			d.ChangePercent = &pct
		}
		deltas = append(deltas, d)
	}

	// Largest absolute movement first.
	sort.Slice(deltas, func(i, j int) bool {
		a, b := deltas[i].ChangeAmount.Abs(), deltas[j].ChangeAmount.Abs()
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return deltas[i].CategoryName < deltas[j].CategoryName
	})
	return deltas
}
