// Package store wraps the external Elasticsearch index. Embeddings are the
// index's responsibility: semantic_text fields embed on write, the core
// never computes vectors itself.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/ik-labs/hk-npm/pkg/models"
)

// PackageStore defines the index operations the pipeline depends on.
type PackageStore interface {
	EnsureIndex(ctx context.Context) error
	UpsertPackage(ctx context.Context, doc *models.PackageDocument) error
	GetPackageByName(ctx context.Context, name string) (*models.PackageDocument, error)
	SearchSymbols(ctx context.Context, packageName, query string, k int) ([]models.ParsedSymbol, bool, error)
	SearchPackages(ctx context.Context, query string, k int) ([]models.PackageHit, error)
}

// Store is an Elasticsearch-backed PackageStore. The client is created once
// and reused across requests.
type Store struct {
	es    *elasticsearch.Client
	index string
}

// New connects to the index endpoint.
func New(url, apiKey, index string) (*Store, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		APIKey:    apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Store{es: es, index: index}, nil
}

// indexMapping declares readmeContent and sourceCodeContent as semantic
// fields (the index generates embeddings for them implicitly) and symbols as
// a nested array so per-symbol inner hits are possible.
const indexMapping = `{
  "mappings": {
    "properties": {
      "name":        {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "version":     {"type": "keyword"},
      "description": {"type": "text"},
      "keywords":    {"type": "keyword"},
      "readmeContent":     {"type": "semantic_text"},
      "sourceCodeContent": {"type": "semantic_text"},
      "codeExamples":      {"type": "text"},
      "exports":           {"type": "keyword"},
      "sourceStrategy":    {"type": "keyword"},
      "totalSymbols":      {"type": "integer"},
      "totalSourceFiles":  {"type": "integer"},
      "totalSourceSize":   {"type": "long"},
      "symbols": {
        "type": "nested",
        "properties": {
          "kind":           {"type": "keyword"},
          "name":           {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
          "signature":      {"type": "text"},
          "implementation": {"type": "text"},
          "jsdoc":          {"type": "text"},
          "filePath":       {"type": "keyword"},
          "startLine":      {"type": "integer"},
          "endLine":        {"type": "integer"},
          "isExported":     {"type": "boolean"},
          "relevanceScore": {"type": "integer"}
        }
      }
    }
  }
}`

// EnsureIndex creates the index with its mapping if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists check: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return errors.New("index exists check: " + res.Status())
	}

	create, err := s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index create: %w", err)
	}
	defer create.Body.Close()
	if create.IsError() {
		return errors.New("index create: " + create.String())
	}
	return nil
}

// UpsertPackage indexes the document as a full replace keyed by
// name@version.
func (s *Store) UpsertPackage(ctx context.Context, doc *models.PackageDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithDocumentID(doc.ID()),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.ID(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.New("index " + doc.ID() + ": " + res.Status())
	}
	return nil
}

// GetPackageByName fetches the latest-version document for a package,
// (nil, nil) when no document exists. Latest is decided semver-aware on the
// client: version is a keyword field, and a lexicographic index-side sort
// would rank 1.9.0 above 1.10.0.
func (s *Store) GetPackageByName(ctx context.Context, name string) (*models.PackageDocument, error) {
	query := map[string]any{
		"size": 100,
		"query": map[string]any{
			"term": map[string]any{"name.keyword": name},
		},
	}

	hits, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}

	var best *models.PackageDocument
	var bestVer *semver.Version
	for _, h := range hits {
		var doc models.PackageDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode package document: %w", err)
		}
		v, verr := semver.NewVersion(doc.Version)
		switch {
		case best == nil:
			best = &doc
			if verr == nil {
				bestVer = v
			}
		case verr != nil:
			// an unparseable version never displaces a parseable one
		case bestVer == nil || v.GreaterThan(bestVer):
			best, bestVer = &doc, v
		}
	}
	return best, nil
}

// SearchSymbols runs the hybrid query scoped to one package: a lexical
// nested clause over the symbol fields (name boosted highest) requesting
// inner hits, and a semantic clause over the whole-document source content,
// fused by the index's reciprocal-rank-fusion retriever. The bool return
// reports whether the package's document matched the fused query,
// independent of inner hits.
func (s *Store) SearchSymbols(ctx context.Context, packageName, query string, k int) ([]models.ParsedSymbol, bool, error) {
	if k <= 0 {
		k = 3
	}
	packageFilter := []any{
		map[string]any{"term": map[string]any{"name.keyword": packageName}},
	}
	lexical := map[string]any{
		"bool": map[string]any{
			"filter": packageFilter,
			"must": []any{
				map[string]any{
					"nested": map[string]any{
						"path": "symbols",
						"query": map[string]any{
							"multi_match": map[string]any{
								"query": query,
								"fields": []string{
									"symbols.name^4",
									"symbols.implementation^2",
									"symbols.signature^2",
									"symbols.jsdoc",
								},
							},
						},
						"inner_hits": map[string]any{"size": k},
					},
				},
			},
		},
	}
	semantic := map[string]any{
		"bool": map[string]any{
			"filter": packageFilter,
			"must": []any{
				map[string]any{
					"semantic": map[string]any{
						"field": "sourceCodeContent",
						"query": query,
					},
				},
			},
		},
	}
	body := map[string]any{
		"size": 1,
		"retriever": map[string]any{
			"rrf": map[string]any{
				"retrievers": []any{
					map[string]any{"standard": map[string]any{"query": lexical}},
					map[string]any{"standard": map[string]any{"query": semantic}},
				},
			},
		},
	}

	hits, err := s.search(ctx, body)
	if err != nil {
		return nil, false, err
	}
	if len(hits) == 0 {
		return nil, false, nil
	}

	var symbols []models.ParsedSymbol
	if ih, ok := hits[0].InnerHits["symbols"]; ok {
		for _, h := range ih.Hits.Hits {
			var sym models.ParsedSymbol
			if err := json.Unmarshal(h.Source, &sym); err != nil {
				continue
			}
			symbols = append(symbols, sym)
		}
	}
	return symbols, true, nil
}

// SearchPackages is corpus-wide discovery: semantic over the README fused
// with lexical over name, description and keywords.
func (s *Store) SearchPackages(ctx context.Context, query string, k int) ([]models.PackageHit, error) {
	if k <= 0 {
		k = 10
	}
	body := map[string]any{
		"size": k,
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{
						"semantic": map[string]any{
							"field": "readmeContent",
							"query": query,
						},
					},
					map[string]any{
						"multi_match": map[string]any{
							"query":  query,
							"fields": []string{"name^3", "description^2", "keywords"},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"_source": []string{"name", "version", "description"},
	}

	hits, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}

	out := make([]models.PackageHit, 0, len(hits))
	for _, h := range hits {
		var src struct {
			Name        string `json:"name"`
			Version     string `json:"version"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(h.Source, &src); err != nil {
			continue
		}
		out = append(out, models.PackageHit{
			Name:        src.Name,
			Version:     src.Version,
			Description: src.Description,
			Score:       h.Score,
		})
	}
	return out, nil
}

// ---------- response plumbing ----------

type searchHit struct {
	Score     float64                 `json:"_score"`
	Source    json.RawMessage         `json:"_source"`
	InnerHits map[string]innerHitsDoc `json:"inner_hits"`
}

type innerHitsDoc struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) search(ctx context.Context, body map[string]any) ([]searchHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.New("search: " + res.Status())
	}

	var out struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Hits.Hits, nil
}
