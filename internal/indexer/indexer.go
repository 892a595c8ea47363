// Package indexer builds one retrieval document per package version and
// submits it to the search index.
package indexer

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ik-labs/hk-npm/internal/fetcher"
	"github.com/ik-labs/hk-npm/internal/registry"
	"github.com/ik-labs/hk-npm/internal/relevance"
	"github.com/ik-labs/hk-npm/internal/store"
	"github.com/ik-labs/hk-npm/pkg/models"
)

// symbolSeparator joins per-symbol blocks inside sourceCodeContent.
const symbolSeparator = "\n\n---\n\n"

// MetadataClient is the registry surface the indexer needs.
type MetadataClient interface {
	Metadata(ctx context.Context, name, version string) (*models.PackageMetadata, error)
	DeclarationFile(ctx context.Context, name, version, entry string) (string, error)
}

// SourceFetcher obtains source files for a package.
type SourceFetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (*models.FetchResult, error)
}

// SymbolParser extracts symbols from one source file.
type SymbolParser interface {
	Parse(filePath, source string) []models.ParsedSymbol
}

// Indexer handles ingestion of npm packages into the search index.
type Indexer struct {
	Registry MetadataClient
	Fetcher  SourceFetcher
	Parser   SymbolParser
	Store    store.PackageStore
}

// New creates a new Indexer instance.
func New(reg MetadataClient, f SourceFetcher, p SymbolParser, st store.PackageStore) *Indexer {
	return &Indexer{Registry: reg, Fetcher: f, Parser: p, Store: st}
}

// IndexPackage ingests one package (version "" means latest) as a full
// document replace. Missing README or declaration file is recoverable, as is
// exhausting every source strategy; only metadata fetch and the final index
// write are fatal for the package.
func (ix *Indexer) IndexPackage(ctx context.Context, name, version string) error {
	meta, err := ix.Registry.Metadata(ctx, name, version)
	if err != nil {
		return &models.IngestionError{PackageName: name, Step: "metadata", Err: err}
	}

	dts, err := ix.Registry.DeclarationFile(ctx, meta.Name, meta.Version, meta.TypesEntry)
	if err != nil {
		log.Warn().Err(err).Str("package", name).Msg("declaration file fetch failed, proceeding without")
		dts = ""
	}
	exports := registry.ExtractTypeExports(dts)
	codeExamples := registry.ExtractCodeBlocks(meta.Readme)

	res, err := ix.Fetcher.Fetch(ctx, fetcher.Request{
		Name:          meta.Name,
		Version:       meta.Version,
		RepositoryURL: meta.RepositoryURL,
	})
	if err != nil {
		log.Warn().Err(err).Str("package", name).Msg("source fetch failed, proceeding without symbols")
		res = nil
	}

	doc := &models.PackageDocument{
		Name:           meta.Name,
		Version:        meta.Version,
		Description:    meta.Description,
		Keywords:       meta.Keywords,
		ReadmeContent:  meta.Readme,
		RepositoryURL:  meta.RepositoryURL,
		SourceStrategy: models.StrategyNone,
		Exports:        exports,
		Symbols:        []models.ParsedSymbol{},
		CodeExamples:   codeExamples,
	}

	if res != nil {
		var symbols []models.ParsedSymbol
		for _, f := range res.Files {
			symbols = append(symbols, ix.Parser.Parse(f.Path, f.Content)...)
		}
		symbols = relevance.Filter(symbols)

		doc.SourceStrategy = res.Strategy
		doc.Symbols = symbols
		doc.SourceCodeContent = buildSourceText(symbols)
		doc.TotalSourceFiles = len(res.Files)
		doc.TotalSourceSize = res.TotalSize
	}
	doc.TotalSymbols = len(doc.Symbols)

	if err := ix.Store.UpsertPackage(ctx, doc); err != nil {
		return &models.IngestionError{PackageName: name, Step: "index", Err: err}
	}

	log.Info().
		Str("package", doc.ID()).
		Str("strategy", string(doc.SourceStrategy)).
		Int("symbols", doc.TotalSymbols).
		Int("files", doc.TotalSourceFiles).
		Msg("package indexed")
	return nil
}

// IndexPackages ingests a batch sequentially. One package's failure is
// logged and counted, never aborting the rest.
func (ix *Indexer) IndexPackages(ctx context.Context, names []string) models.IngestionSummary {
	summary := models.IngestionSummary{Failed: map[string]string{}}
	for _, name := range names {
		if err := ix.IndexPackage(ctx, name, ""); err != nil {
			log.Error().Err(err).Str("package", name).Msg("package ingestion failed")
			summary.Failed[name] = err.Error()
			continue
		}
		summary.Succeeded = append(summary.Succeeded, name)
	}
	return summary
}

// buildSourceText concatenates, per symbol, its doc comment, signature,
// implementation and metadata. The result feeds the index's semantic field.
func buildSourceText(symbols []models.ParsedSymbol) string {
	blocks := make([]string, 0, len(symbols))
	for _, s := range symbols {
		var b strings.Builder
		if s.JSDoc != "" {
			b.WriteString(s.JSDoc + "\n")
		}
		if s.Signature != "" {
			b.WriteString(s.Signature + "\n")
		}
		b.WriteString(s.Implementation)
		b.WriteString("\nFile: " + s.FilePath + " | Kind: " + string(s.Kind))
		if len(s.Parameters) > 0 {
			b.WriteString(" | Parameters: " + strings.Join(s.Parameters, ", "))
		}
		if s.ReturnType != "" {
			b.WriteString(" | Returns: " + s.ReturnType)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, symbolSeparator)
}
