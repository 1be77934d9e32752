package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// MatchResult represents a single pattern match with its associated metadata
type MatchResult struct {
	Pattern    string  // The original rule pattern that matched
	Category   string  // The category name to assign
	Priority   int     // Higher priority matches take precedence
	Confidence float64 // Assignment confidence carried onto the transaction
}

// Engine is a multi-pattern matching engine using the Aho-Corasick algorithm.
// It matches thousands of keyword rules in a single pass through the text,
// independent of the number of patterns.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string        // Unique patterns in same order as matcher
	metadata [][]MatchResult // Metadata per pattern (duplicates grouped)
	mu       sync.RWMutex    // Protects rebuilding the matcher
}

// NewEngine creates a categorization engine from keyword rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build constructs the Aho-Corasick matcher from rules. Call again to rebuild
// when the rule set changes. Duplicate patterns are grouped so every rule for a
// pattern stays reachable.
func (e *Engine) Build(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(rules) == 0 {
		e.matcher = nil
		e.patterns = nil
		e.metadata = nil
		return
	}

	patternToIndex := make(map[string]int)
	patterns := make([]string, 0, len(rules))
	metadata := make([][]MatchResult, 0, len(rules))

	for _, rule := range rules {
		cleanPattern := strings.ToUpper(strings.TrimSpace(rule.Pattern))
		if cleanPattern == "" {
			continue
		}

		result := MatchResult{
			Pattern:    rule.Pattern,
			Category:   rule.Category,
			Priority:   rule.Priority,
			Confidence: rule.Confidence,
		}
		if idx, exists := patternToIndex[cleanPattern]; exists {
			metadata[idx] = append(metadata[idx], result)
		} else {
			patternToIndex[cleanPattern] = len(patterns)
			patterns = append(patterns, cleanPattern)
			metadata = append(metadata, []MatchResult{result})
		}
	}

	e.patterns = patterns
	e.metadata = metadata

	if len(patterns) > 0 {
		bytePatterns := make([][]byte, len(patterns))
		for i, p := range patterns {
			bytePatterns[i] = []byte(p)
		}
		e.matcher = ahocorasick.NewMatcher(bytePatterns)
	} else {
		e.matcher = nil
	}
}

// Match finds all matching patterns in the description and returns the best
// match by priority; ties break toward the longer pattern so "UBER EATS" beats
// "UBER". Returns nil if no patterns match.
func (e *Engine) Match(description string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matchLocked(description)
}

func (e *Engine) matchLocked(description string) *MatchResult {
	if e.matcher == nil || len(e.patterns) == 0 {
		return nil
	}

	normalizedInput := strings.ToUpper(description)
	matches := e.matcher.Match([]byte(normalizedInput))
	if len(matches) == 0 {
		return nil
	}

	var bestMatch *MatchResult
	for _, idx := range matches {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			match := &e.metadata[idx][i]
			if bestMatch == nil ||
				match.Priority > bestMatch.Priority ||
				(match.Priority == bestMatch.Priority && len(match.Pattern) > len(bestMatch.Pattern)) {
				matchCopy := *match
				bestMatch = &matchCopy
			}
		}
	}

	return bestMatch
}

// MatchBatch categorizes multiple descriptions under a single read lock.
func (e *Engine) MatchBatch(descriptions []string) []*MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]*MatchResult, len(descriptions))
	for i, desc := range descriptions {
		results[i] = e.matchLocked(desc)
	}
	return results
}

// PatternCount returns the number of patterns loaded in the engine.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// IsEmpty returns true if the engine has no patterns loaded.
func (e *Engine) IsEmpty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher == nil || len(e.patterns) == 0
}
