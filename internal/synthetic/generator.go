// Package synthetic generates realistic demo transactions: steady income,
// planted subscriptions, gray charges, and a couple of anomalies for the
// pipeline to find. Generation is seeded so demo sessions are reproducible.
package synthetic

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

// Months of history generated for a demo session.
const DefaultMonths = 3

// DefaultSeed keeps demo sessions reproducible across restarts.
const DefaultSeed = 42

type plannedCharge struct {
	description string
	amount      float64
	day         int
}

// Fixed monthly charges the detectors should find.
var monthlyCharges = []plannedCharge{
	{"RENT PROPERTY MGMT LLC", -1800.00, 1},
	{"NETFLIX.COM 8005551234", -15.99, 15},
	{"SPOTIFY P1234567890", -10.99, 7},
	{"PLANET FITNESS GYM", -24.99, 3},
	// Gray charges: small, easy to forget, non-essential.
	{"CLOUDSAVE PRO", -2.99, 11},
	{"APPSTACK MINI", -1.99, 19},
	{"STORAGEPLUS BACKUP", -4.99, 23},
}

// Generator produces demo transactions for a session.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a seeded generator. The same seed always produces the
// same transaction set.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Generate returns months of history ending at the month of now, newest last.
func (g *Generator) Generate(sessionID uuid.UUID, months int, now time.Time) []transactions.Transaction {
	if months <= 0 {
		months = DefaultMonths
	}

	var txns []transactions.Transaction
	add := func(desc string, amount float64, date time.Time) {
		txns = append(txns, transactions.Transaction{
			ID:             uuid.New(),
			SessionID:      sessionID,
			Date:           date,
			Description:    transactions.CleanDescription(desc),
			RawDescription: desc,
			Amount:         decimal.NewFromFloat(amount),
		})
	}

	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	for m := 0; m < months; m++ {
		monthStart := firstMonth.AddDate(0, m, 0)
		daysInMonth := monthStart.AddDate(0, 1, -1).Day()

		// Paychecks on the 1st and 15th.
		add("PAYCHECK ACME CORP DIRECT DEP", 3200.00, monthStart)
		add("PAYCHECK ACME CORP DIRECT DEP", 3200.00, monthStart.AddDate(0, 0, 14))

		for _, c := range monthlyCharges {
			day := c.day
			if day > daysInMonth {
				day = daysInMonth
			}
			add(c.description, c.amount, monthStart.AddDate(0, 0, day-1))
		}

		// Variable spending.
		for i := 0; i < 6; i++ {
			add(fmt.Sprintf("WHOLE FOODS MKT %d", g.faker.Number(10000, 99999)),
				-g.faker.Float64Range(40, 130),
				g.randomDay(monthStart, daysInMonth))
		}
		for i := 0; i < 8; i++ {
			add(fmt.Sprintf("STARBUCKS #%d", g.faker.Number(1000, 9999)),
				-g.faker.Float64Range(5, 14),
				g.randomDay(monthStart, daysInMonth))
		}
		for i := 0; i < 4; i++ {
			add("UBER *TRIP "+g.faker.LetterN(6),
				-g.faker.Float64Range(9, 38),
				g.randomDay(monthStart, daysInMonth))
		}
		for i := 0; i < 3; i++ {
			add("DOORDASH "+g.faker.Company(),
				-g.faker.Float64Range(18, 55),
				g.randomDay(monthStart, daysInMonth))
		}
		for i := 0; i < 2; i++ {
			add(fmt.Sprintf("AMAZON.COM AMZN.COM/BILL %s", g.faker.LetterN(5)),
				-g.faker.Float64Range(15, 90),
				g.randomDay(monthStart, daysInMonth))
		}
	}

	// Planted anomalies in the most recent month.
	lastMonth := firstMonth.AddDate(0, months-1, 0)
	add("LUXE ELECTRONICS SHOWROOM", -1487.99, lastMonth.AddDate(0, 0, 19))
	add("CHIPOTLE 2044 CATERING", -523.45, lastMonth.AddDate(0, 0, 24))

	return txns
}

func (g *Generator) randomDay(monthStart time.Time, daysInMonth int) time.Time {
	return monthStart.AddDate(0, 0, g.faker.Number(0, daysInMonth-1))
}
