// Package transactions defines the bank transaction model flowing through the
// analysis pipeline, including categorization provenance.
package transactions

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source records how a transaction received its category. User assignments are
// terminal: no later run may overwrite them.
type Source string

const (
	SourceRule     Source = "rule"
	SourceAI       Source = "ai"
	SourceUser     Source = "user"
	SourceFallback Source = "fallback"
)

// Valid reports whether s is a known provenance value.
func (s Source) Valid() bool {
	switch s {
	case SourceRule, SourceAI, SourceUser, SourceFallback:
		return true
	}
	return false
}

// Transaction is a single bank transaction inside an analysis session.
// Amount is signed: negative for spending, positive for income.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	SessionID      uuid.UUID       `json:"session_id"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	RawDescription string          `json:"raw_description"`
	Amount         decimal.Decimal `json:"amount"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Source         Source          `json:"source,omitempty"`
}

// IsSpending reports whether the transaction is an outflow.
func (t Transaction) IsSpending() bool {
	return t.Amount.IsNegative()
}

// Magnitude returns the unsigned amount.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// Month returns the calendar month bucket, e.g. "2026-08".
func (t Transaction) Month() string {
	return t.Date.Format("2006-01")
}

// Categorized reports whether any stage has assigned a category yet.
func (t Transaction) Categorized() bool {
	return t.CategoryID != nil && t.Source != ""
}

// Validate checks the fields ingestion must supply.
func (t Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction missing id")
	}
	if t.SessionID == uuid.Nil {
		return fmt.Errorf("transaction %s missing session id", t.ID)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s missing date", t.ID)
	}
	if strings.TrimSpace(t.Description) == "" && strings.TrimSpace(t.RawDescription) == "" {
		return fmt.Errorf("transaction %s missing description", t.ID)
	}
	if t.Source != "" && !t.Source.Valid() {
		return fmt.Errorf("transaction %s has unknown source %q", t.ID, t.Source)
	}
	return nil
}

var (
	bankPrefixes = regexp.MustCompile(`(?i)^(POS |CHECKCARD |DEBIT CARD |DEBIT |CREDIT |PURCHASE |PAYMENT TO |ACH )`)
	whitespace   = regexp.MustCompile(`\s+`)

	longDigits = regexp.MustCompile(`\d{4,}`)
	refNumber  = regexp.MustCompile(`#\d+`)
	stars      = regexp.MustCompile(`\*+`)
)

// CleanDescription strips the processor noise banks prepend to merchant
// descriptions and collapses whitespace. The raw description is kept alongside
// so nothing is lost.
func CleanDescription(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		stripped := bankPrefixes.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	return whitespace.ReplaceAllString(s, " ")
}

// merchantKeyMax keeps merchant keys short enough that trailing location noise
// does not split one merchant into several.
const merchantKeyMax = 30

// MerchantKey normalizes a description into a stable merchant identity:
// store numbers, reference numbers, and separators vary per charge, the
// merchant name does not. Used for recurring clustering and merchant baselines.
func MerchantKey(description string) string {
	s := strings.ToUpper(CleanDescription(description))
	s = longDigits.ReplaceAllString(s, "")
	s = refNumber.ReplaceAllString(s, "")
	s = stars.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if len(s) > merchantKeyMax {
		s = strings.TrimSpace(s[:merchantKeyMax])
	}
	return s
}
