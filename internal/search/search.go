// Package search retrieves grounding context for one package. Retrieval is
// allowed to degrade to empty, never to fail the caller.
package search

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/ik-labs/hk-npm/internal/store"
	"github.com/ik-labs/hk-npm/pkg/models"
)

// snippetLength bounds SymbolMatch.Snippet for list display. The full
// implementation is retained separately for prompt construction.
const snippetLength = 160

// DefaultMaxSnippets is used when a request leaves maxSnippets unset.
const DefaultMaxSnippets = 3

// Retriever resolves a (package, query) pair to the best available symbol
// context, falling back through three levels of specificity.
type Retriever struct {
	store store.PackageStore
}

// NewRetriever creates a Retriever over the given index.
func NewRetriever(st store.PackageStore) *Retriever {
	return &Retriever{store: st}
}

// FindContext returns up to maxSnippets symbol matches for the query,
// possibly empty.
func (r *Retriever) FindContext(ctx context.Context, packageName, query string, maxSnippets int) []models.SymbolMatch {
	return r.PackageContext(ctx, packageName, query, maxSnippets).Matches
}

// PackageContext returns symbol matches plus the document-level grounding
// material (readme, exports, code examples) the prompt builder needs.
//
// Cascade: hybrid query with nested inner hits; if that yields no symbols,
// re-rank the full document's stored symbols by relevance score; if the
// document cannot be fetched either, return empty matches.
func (r *Retriever) PackageContext(ctx context.Context, packageName, query string, maxSnippets int) models.PackageContext {
	if maxSnippets <= 0 {
		maxSnippets = DefaultMaxSnippets
	}
	pc := models.PackageContext{Name: packageName}

	symbols, found, err := r.store.SearchSymbols(ctx, packageName, query, maxSnippets)
	if err != nil {
		log.Warn().Err(err).Str("package", packageName).Msg("symbol search failed, degrading")
	}
	pc.Found = found

	doc, err := r.store.GetPackageByName(ctx, packageName)
	if err != nil {
		log.Warn().Err(err).Str("package", packageName).Msg("package fetch failed, degrading")
		doc = nil
	}
	if doc != nil {
		pc.Found = true
		pc.Version = doc.Version
		pc.Readme = doc.ReadmeContent
		pc.Exports = doc.Exports
		pc.CodeExamples = doc.CodeExamples

		// second cascade level: no inner hits, re-rank stored symbols
		if len(symbols) == 0 {
			symbols = rankStoredSymbols(doc.Symbols, maxSnippets)
		}
	}

	pc.Matches = toMatches(symbols, maxSnippets)
	return pc
}

// rankStoredSymbols filters to symbols with a non-empty implementation,
// orders them by the relevance score persisted at indexing time, and takes
// the top maxSnippets.
func rankStoredSymbols(symbols []models.ParsedSymbol, maxSnippets int) []models.ParsedSymbol {
	kept := make([]models.ParsedSymbol, 0, len(symbols))
	for _, s := range symbols {
		if s.Implementation != "" {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})
	if len(kept) > maxSnippets {
		kept = kept[:maxSnippets]
	}
	return kept
}

func toMatches(symbols []models.ParsedSymbol, maxSnippets int) []models.SymbolMatch {
	if len(symbols) > maxSnippets {
		symbols = symbols[:maxSnippets]
	}
	matches := make([]models.SymbolMatch, 0, len(symbols))
	for _, s := range symbols {
		matches = append(matches, models.SymbolMatch{
			Name:           s.Name,
			Kind:           s.Kind,
			FilePath:       s.FilePath,
			Snippet:        truncate(s.Implementation, snippetLength),
			IsExported:     s.IsExported,
			RelevanceScore: s.RelevanceScore,
			Implementation: s.Implementation,
			JSDoc:          s.JSDoc,
			Signature:      s.Signature,
		})
	}
	return matches
}

// truncate cuts at a byte budget without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
