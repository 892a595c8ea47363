package relevance

import (
	"sort"
	"strings"

	"github.com/ik-labs/hk-npm/pkg/models"
)

const (
	// minImplementation drops trivial bodies; maxImplementation drops
	// likely-generated or bulk declarations.
	minImplementation = 50
	maxImplementation = 10000
)

// excludedPathMarkers identify test/spec/mock/fixture files whose symbols
// carry no grounding value.
var excludedPathMarkers = []string{
	".test.", ".spec.", "__tests__", "__mocks__",
	"/test/", "/tests/", "/fixtures/", ".stories.",
}

// apiKeywords nudge the score toward symbols that touch I/O or expose
// callable surface.
var apiKeywords = []string{"fetch", "request", "http", "api", "execute", "call"}

// Filter drops low-value symbols, stamps each survivor with its relevance
// score, and orders the result by descending score. Filtering is idempotent.
func Filter(symbols []models.ParsedSymbol) []models.ParsedSymbol {
	kept := make([]models.ParsedSymbol, 0, len(symbols))
	for _, s := range symbols {
		if len(s.Implementation) < minImplementation || len(s.Implementation) > maxImplementation {
			continue
		}
		if isExcludedPath(s.FilePath) {
			continue
		}
		s.RelevanceScore = Score(s)
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})
	return kept
}

// Score is a pure function of the symbol's fields: an unbounded non-negative
// integer ranking its usefulness for grounding.
func Score(s models.ParsedSymbol) int {
	score := 0
	if s.IsExported {
		score += 10
	}
	if len(s.JSDoc) > 20 {
		score += 5
	}
	if !strings.HasPrefix(s.Name, "_") {
		score += 3
	}
	if len(s.Implementation) > 100 && len(s.Implementation) < 2000 {
		score += 2
	}
	impl := strings.ToLower(s.Implementation)
	if strings.Contains(impl, "async") || strings.Contains(impl, "await") {
		score += 2
	}
	if strings.Contains(impl, "try") || strings.Contains(impl, "catch") || strings.Contains(impl, "throw") {
		score += 1
	}
	for _, kw := range apiKeywords {
		if strings.Contains(impl, kw) {
			score += 2
			break
		}
	}
	return score
}

func isExcludedPath(path string) bool {
	p := strings.ToLower(path)
	for _, m := range excludedPathMarkers {
		if strings.Contains(p, m) {
			return true
		}
	}
	return false
}
