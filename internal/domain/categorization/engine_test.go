package categorization

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() []Rule {
	return []Rule{
		systemRule("NETFLIX", "Subscriptions"),
		systemRule("UBER", "Transportation"),
		overrideRule("UBER EATS", "Delivery"),
		systemRule("STARBUCKS", "Dining"),
	}
}

func TestEngineMatch(t *testing.T) {
	engine := NewEngine(testRules())

	tests := []struct {
		name        string
		description string
		wantCategory string
		wantMatch   bool
	}{
		{"exact keyword", "NETFLIX.COM", "Subscriptions", true},
		{"case insensitive", "netflix monthly", "Subscriptions", true},
		{"embedded keyword", "TST* STARBUCKS #4821", "Dining", true},
		{"no match", "LOCAL BODEGA", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := engine.Match(tt.description)
			if !tt.wantMatch {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantCategory, m.Category)
		})
	}
}

func TestEnginePriorityResolution(t *testing.T) {
	engine := NewEngine(testRules())

	// Both UBER and UBER EATS match; the override tier must win.
	m := engine.Match("UBER EATS PENDING")
	require.NotNil(t, m)
	assert.Equal(t, "Delivery", m.Category)

	m = engine.Match("UBER *TRIP 48213")
	require.NotNil(t, m)
	assert.Equal(t, "Transportation", m.Category)
}

func TestEngineUserRuleBeatsSystem(t *testing.T) {
	rules := append(testRules(), Rule{
		Pattern: "NETFLIX", Category: "Entertainment", Priority: PriorityUser, Confidence: 1,
	})
	engine := NewEngine(rules)

	m := engine.Match("NETFLIX.COM")
	require.NotNil(t, m)
	assert.Equal(t, "Entertainment", m.Category)
}

func TestEngineMatchBatch(t *testing.T) {
	engine := NewEngine(testRules())

	results := engine.MatchBatch([]string{"NETFLIX.COM", "LOCAL BODEGA", "LYFT RIDE"})
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.Nil(t, results[2])
}

func TestEngineEmptyAndRebuild(t *testing.T) {
	engine := NewEngine(nil)
	assert.True(t, engine.IsEmpty())
	assert.Nil(t, engine.Match("NETFLIX.COM"))

	engine.Build(testRules())
	assert.False(t, engine.IsEmpty())
	assert.Equal(t, 4, engine.PatternCount())
}

func BenchmarkEngineMatch(b *testing.B) {
	rules := DefaultRules()
	for i := 0; i < 500; i++ {
		rules = append(rules, systemRule(fmt.Sprintf("MERCHANT-%04d", i), "Shopping"))
	}
	engine := NewEngine(rules)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Match("CHECKCARD 0812 WHOLE FOODS MKT 10293")
	}
}

func TestFuzzyMatcher(t *testing.T) {
	fm := NewFuzzyMatcher(testRules())

	m := fm.Match("STARBCKS", 70)
	require.NotNil(t, m)
	assert.Equal(t, "Dining", m.Category)
	assert.GreaterOrEqual(t, m.Score, 70)
	assert.Less(t, m.Confidence, 0.95)

	assert.Nil(t, fm.Match("COMPLETELY DIFFERENT", 70))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("NETFLIX", "NETFLIX"))
	assert.GreaterOrEqual(t, Similarity("NETFLIX.COM 12345", "NETFLIX"), 75)
	assert.Less(t, Similarity("WHOLE FOODS", "NETFLIX"), 50)
}
