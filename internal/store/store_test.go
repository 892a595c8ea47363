package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ik-labs/hk-npm/pkg/models"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// newElasticStub serves canned responses keyed by "METHOD path". Every
// response carries the product header the client verifies on first contact.
func newElasticStub(t *testing.T, responses map[string]string, capture *[]string) *Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			*capture = append(*capture, string(body))
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Write([]byte(resp))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not stubbed"}`))
	}))
	t.Cleanup(srv.Close)

	st, err := New(srv.URL, "", "npm-packages")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return st
}

const symbolSearchResponse = `{
  "hits": {
    "hits": [
      {
        "_score": 2.5,
        "_source": {"name": "axios", "version": "1.7.0"},
        "inner_hits": {
          "symbols": {
            "hits": {
              "hits": [
                {"_source": {"kind": "function", "name": "request", "filePath": "lib/axios.js", "isExported": true}},
                {"_source": {"kind": "function", "name": "get", "filePath": "lib/axios.js", "isExported": true}}
              ]
            }
          }
        }
      }
    ]
  }
}`

func TestSearchSymbols(t *testing.T) {
	var bodies []string
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": symbolSearchResponse,
	}, &bodies)

	symbols, found, err := st.SearchSymbols(context.Background(), "axios", "http get", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected the package document to match")
	}
	if len(symbols) != 2 || symbols[0].Name != "request" || symbols[1].Name != "get" {
		t.Fatalf("symbols = %+v, want [request get]", symbols)
	}

	if len(bodies) != 1 {
		t.Fatalf("got %d search requests, want 1", len(bodies))
	}
	var q map[string]any
	if err := json.Unmarshal([]byte(bodies[0]), &q); err != nil {
		t.Fatalf("query is not valid json: %v", err)
	}
	raw := bodies[0]
	for _, fragment := range []string{
		`"rrf"`,
		`"retrievers"`,
		`"standard"`,
		`"name.keyword":"axios"`,
		`"path":"symbols"`,
		`"inner_hits"`,
		`"symbols.name^4"`,
		`"semantic"`,
		`"sourceCodeContent"`,
	} {
		if !strings.Contains(raw, fragment) {
			t.Errorf("query missing %s:\n%s", fragment, raw)
		}
	}
}

func TestSearchSymbolsNoDocument(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{"hits": {"hits": []}}`,
	}, nil)

	symbols, found, err := st.SearchSymbols(context.Background(), "ghost-pkg", "q", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || symbols != nil {
		t.Errorf("got (%v, %v), want (nil, false)", symbols, found)
	}
}

func TestSearchSymbolsDocumentWithoutInnerHits(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{"hits": {"hits": [{"_score": 1.0, "_source": {"name": "axios"}}]}}`,
	}, nil)

	symbols, found, err := st.SearchSymbols(context.Background(), "axios", "q", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("document matched, found must be true even with zero inner hits")
	}
	if len(symbols) != 0 {
		t.Errorf("symbols = %+v, want none", symbols)
	}
}

func TestGetPackageByName(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{"hits": {"hits": [{"_source": {"name": "axios", "version": "1.7.0", "readmeContent": "# axios"}}]}}`,
	}, nil)

	doc, err := st.GetPackageByName(context.Background(), "axios")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.Name != "axios" || doc.Version != "1.7.0" {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestGetPackageByNameLatestVersion(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{
  "hits": {
    "hits": [
      {"_source": {"name": "axios", "version": "1.9.0"}},
      {"_source": {"name": "axios", "version": "1.10.0"}},
      {"_source": {"name": "axios", "version": "not-a-version"}}
    ]
  }
}`,
	}, nil)

	doc, err := st.GetPackageByName(context.Background(), "axios")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.Version != "1.10.0" {
		t.Fatalf("doc = %+v, want version 1.10.0 (semver order, not lexicographic)", doc)
	}
}

func TestGetPackageByNameAbsent(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{"hits": {"hits": []}}`,
	}, nil)

	doc, err := st.GetPackageByName(context.Background(), "ghost-pkg")
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if doc != nil {
		t.Errorf("doc = %+v, want nil", doc)
	}
}

func TestSearchPackages(t *testing.T) {
	st := newElasticStub(t, map[string]string{
		"POST /npm-packages/_search": `{
  "hits": {
    "hits": [
      {"_score": 3.1, "_source": {"name": "axios", "version": "1.7.0", "description": "http client"}},
      {"_score": 1.2, "_source": {"name": "got", "version": "14.0.0", "description": "http request library"}}
    ]
  }
}`,
	}, nil)

	hits, err := st.SearchPackages(context.Background(), "http client", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Name != "axios" || hits[0].Score != 3.1 {
		t.Errorf("first hit = %+v", hits[0])
	}
}

func TestUpsertPackageUsesVersionedID(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "created"}`))
	}))
	defer srv.Close()

	st, err := New(srv.URL, "", "npm-packages")
	if err != nil {
		t.Fatal(err)
	}

	doc := &models.PackageDocument{Name: "axios", Version: "1.7.0"}
	if err := st.UpsertPackage(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "/axios@1.7.0") {
		t.Errorf("document path = %q, want the name@version id", path)
	}
}

func TestEnsureIndexExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if r.Method == http.MethodPut {
			created = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := New(srv.URL, "", "npm-packages")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("existing index must not be recreated")
	}
}

func TestEnsureIndexCreatesWithMapping(t *testing.T) {
	var mapping string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			mapping = string(b)
			w.Write([]byte(`{"acknowledged": true}`))
		}
	}))
	defer srv.Close()

	st, err := New(srv.URL, "", "npm-packages")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fragment := range []string{`"semantic_text"`, `"nested"`, `"relevanceScore"`} {
		if !strings.Contains(mapping, fragment) {
			t.Errorf("mapping missing %s", fragment)
		}
	}
}
