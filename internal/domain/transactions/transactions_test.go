package transactions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"pos prefix", "POS NETFLIX.COM", "NETFLIX.COM"},
		{"checkcard prefix", "CHECKCARD 0812 STARBUCKS #4821", "0812 STARBUCKS #4821"},
		{"stacked prefixes", "DEBIT POS UBER *TRIP", "UBER *TRIP"},
		{"case insensitive", "purchase AMAZON.COM", "AMAZON.COM"},
		{"collapses whitespace", "  WHOLE   FOODS  MKT ", "WHOLE FOODS MKT"},
		{"untouched", "PAYCHECK ACME CORP", "PAYCHECK ACME CORP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.raw))
		})
	}
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceRule.Valid())
	assert.True(t, SourceUser.Valid())
	assert.False(t, Source("guess").Valid())
}

func TestTransactionHelpers(t *testing.T) {
	txn := Transaction{
		Date:   time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromFloat(-15.99),
	}

	assert.True(t, txn.IsSpending())
	assert.Equal(t, "15.99", txn.Magnitude().String())
	assert.Equal(t, "2026-08", txn.Month())
	assert.False(t, txn.Categorized())
}

func TestValidate(t *testing.T) {
	valid := Transaction{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		Date:        time.Now(),
		Description: "NETFLIX.COM",
		Amount:      decimal.NewFromFloat(-15.99),
	}
	assert.NoError(t, valid.Validate())

	missingDate := valid
	missingDate.Date = time.Time{}
	assert.Error(t, missingDate.Validate())

	badSource := valid
	badSource.Source = "oracle"
	assert.Error(t, badSource.Validate())
}

func TestMerchantKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strips store numbers", "STARBUCKS #4821", "STARBUCKS"},
		{"strips long digits", "NETFLIX.COM 800123456789", "NETFLIX.COM"},
		{"strips card separators", "UBER *TRIP HELP.UBER.CO", "UBER TRIP HELP.UBER.CO"},
		{"same merchant different store", "CHECKCARD WHOLE FOODS MKT 10293", "WHOLE FOODS MKT"},
		{"stable across charges", "POS SPOTIFY P0812345", "SPOTIFY P"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MerchantKey(tt.raw))
		})
	}
}

func TestMerchantKeyGroupsVariants(t *testing.T) {
	a := MerchantKey("STARBUCKS #4821")
	b := MerchantKey("STARBUCKS #0099")
	assert.Equal(t, a, b)
}
