package categorization

import (
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FuzzyMatchResult represents a fuzzy match with its similarity score
type FuzzyMatchResult struct {
	Pattern    string  // The rule pattern that matched
	Category   string  // The category name to assign
	Score      int     // Similarity score (higher = better match, max 100)
	Confidence float64 // Rule confidence scaled by similarity
}

// FuzzyMatcher catches misspelled or truncated merchant strings the exact
// engine misses, like "STARBCKS 4821" against the "STARBUCKS" rule.
type FuzzyMatcher struct {
	patterns []fuzzyPattern
	mu       sync.RWMutex
}

type fuzzyPattern struct {
	normalized string
	category   string
	priority   int
	confidence float64
}

// NewFuzzyMatcher creates a fuzzy matcher from the same rule table the exact
// engine uses.
func NewFuzzyMatcher(rules []Rule) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules)
	return fm
}

// Build constructs the fuzzy matcher from rules.
func (fm *FuzzyMatcher) Build(rules []Rule) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.patterns = make([]fuzzyPattern, 0, len(rules))
	for _, rule := range rules {
		cleanPattern := strings.ToUpper(strings.TrimSpace(rule.Pattern))
		if cleanPattern == "" {
			continue
		}
		fm.patterns = append(fm.patterns, fuzzyPattern{
			normalized: cleanPattern,
			category:   rule.Category,
			priority:   rule.Priority,
			confidence: rule.Confidence,
		})
	}
}

// Match finds the best fuzzy match for the description. Returns nil if no
// pattern reaches the threshold (a 0-100 similarity score).
func (fm *FuzzyMatcher) Match(description string, threshold int) *FuzzyMatchResult {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	if len(fm.patterns) == 0 {
		return nil
	}

	normalized := strings.ToUpper(description)

	var best *FuzzyMatchResult
	bestPriority := 0
	for _, p := range fm.patterns {
		score := Similarity(normalized, p.normalized)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score || (score == best.Score && p.priority > bestPriority) {
			best = &FuzzyMatchResult{
				Pattern:    p.normalized,
				Category:   p.category,
				Score:      score,
				Confidence: p.confidence * float64(score) / 100,
			}
			bestPriority = p.priority
		}
	}

	return best
}

// Similarity scores two uppercase strings 0-100 using containment, Levenshtein
// distance, and subsequence ranking, keeping the best of the three.
func Similarity(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	// Containment is the common case for merchant variations
	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := fuzzy.LevenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	fuzzyLibScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	if levenshteinScore > fuzzyLibScore {
		return levenshteinScore
	}
	return fuzzyLibScore
}
