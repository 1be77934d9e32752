package categorization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/spending-coach/internal/ai"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

// fuzzyThreshold is the similarity score a near-miss needs before we trust it
// over sending the description to the model.
const fuzzyThreshold = 85

// Summary counts assignments per provenance source for one run.
type Summary struct {
	Rule     int `json:"rule"`
	AI       int `json:"ai"`
	User     int `json:"user"`
	Fallback int `json:"fallback"`
}

// Service assigns a category to every transaction: exact keyword rules first,
// fuzzy near-misses second, the model for the rest, and the fallback category
// when everything else fails. User assignments are never touched.
type Service struct {
	engine     *Engine
	fuzzy      *FuzzyMatcher
	categorizer ai.Categorizer
	batchSize  int
	logger     *slog.Logger
}

// NewService wires the categorization stage.
func NewService(engine *Engine, fuzzy *FuzzyMatcher, categorizer ai.Categorizer, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Service{
		engine:      engine,
		fuzzy:       fuzzy,
		categorizer: categorizer,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Categorize returns a categorized copy of txns plus per-source counts.
// Model failures degrade to the fallback category; only context cancellation
// is returned as an error.
func (s *Service) Categorize(ctx context.Context, txns []transactions.Transaction, tax *taxonomy.Taxonomy) ([]transactions.Transaction, Summary, error) {
	out := make([]transactions.Transaction, len(txns))
	copy(out, txns)

	var summary Summary

	// Exact rule pass, one engine lock for the whole batch.
	descriptions := make([]string, len(out))
	for i := range out {
		descriptions[i] = out[i].Description
	}
	ruleMatches := s.engine.MatchBatch(descriptions)

	pending := make([]int, 0, len(out))
	for i := range out {
		if out[i].Source == transactions.SourceUser {
			summary.User++
			continue
		}

		if m := ruleMatches[i]; m != nil {
			if s.assign(&out[i], tax, m.Category, m.Confidence, transactions.SourceRule) {
				summary.Rule++
				continue
			}
		}

		if fm := s.fuzzy.Match(out[i].Description, fuzzyThreshold); fm != nil {
			if s.assign(&out[i], tax, fm.Category, fm.Confidence, transactions.SourceRule) {
				summary.Rule++
				continue
			}
		}

		pending = append(pending, i)
	}

	// Model pass over deduplicated descriptions.
	guessed := s.categorizePending(ctx, out, pending, tax)
	for _, i := range pending {
		if ctx.Err() != nil {
			return nil, Summary{}, fmt.Errorf("categorization interrupted: %w", ctx.Err())
		}
		if g, ok := guessed[out[i].Description]; ok {
			if s.assign(&out[i], tax, g.Category, g.Confidence, transactions.SourceAI) {
				summary.AI++
				continue
			}
		}
		fallback := tax.Uncategorized()
		id := fallback.ID
		zero := 0.0
		out[i].CategoryID = &id
		out[i].Confidence = &zero
		out[i].Source = transactions.SourceFallback
		summary.Fallback++
	}

	return out, summary, nil
}

// categorizePending sends unmatched descriptions to the model in batches.
// Any model failure is logged and leaves the remaining descriptions unguessed.
func (s *Service) categorizePending(ctx context.Context, txns []transactions.Transaction, pending []int, tax *taxonomy.Taxonomy) map[string]ai.CategoryGuess {
	guessed := make(map[string]ai.CategoryGuess)
	if s.categorizer == nil || len(pending) == 0 {
		return guessed
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(pending))
	for _, i := range pending {
		desc := txns[i].Description
		if !seen[desc] {
			seen[desc] = true
			unique = append(unique, desc)
		}
	}

	names := tax.Names()
	for start := 0; start < len(unique); start += s.batchSize {
		end := min(start+s.batchSize, len(unique))

		guesses, err := s.categorizer.CategorizeBatch(ctx, unique[start:end], names)
		if err != nil {
			s.logger.Warn("model categorization failed, using fallback for remaining",
				slog.Int("remaining", len(unique)-start),
				slog.Any("error", err))
			break
		}
		for _, g := range guesses {
			guessed[g.Description] = g
		}
	}
	return guessed
}

// assign resolves a category name against the taxonomy and stamps provenance.
// Unknown names are rejected so the model cannot invent categories.
func (s *Service) assign(txn *transactions.Transaction, tax *taxonomy.Taxonomy, category string, confidence float64, source transactions.Source) bool {
	c, ok := tax.ByName(category)
	if !ok {
		return false
	}
	id := c.ID
	conf := confidence
	txn.CategoryID = &id
	txn.Confidence = &conf
	txn.Source = source
	return true
}
