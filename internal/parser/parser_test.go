package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ik-labs/hk-npm/pkg/models"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func findSymbol(symbols []models.ParsedSymbol, name string) *models.ParsedSymbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func TestParseExportedFunction(t *testing.T) {
	src := "export function add(a: number, b: number): number { return a + b; }"

	symbols := New().Parse("src/math.ts", src)
	if len(symbols) != 1 {
		t.Fatalf("got %d symbols, want 1: %+v", len(symbols), symbols)
	}

	sym := symbols[0]
	if sym.Kind != models.KindFunction {
		t.Errorf("kind = %q, want function", sym.Kind)
	}
	if sym.Name != "add" {
		t.Errorf("name = %q, want add", sym.Name)
	}
	if !sym.IsExported {
		t.Error("expected exported")
	}
	if want := []string{"a: number", "b: number"}; !reflect.DeepEqual(sym.Parameters, want) {
		t.Errorf("parameters = %v, want %v", sym.Parameters, want)
	}
	if sym.ReturnType != "number" {
		t.Errorf("returnType = %q, want number", sym.ReturnType)
	}
	if sym.Signature != "function add(a: number, b: number): number" {
		t.Errorf("signature = %q", sym.Signature)
	}
	if sym.StartLine != 1 || sym.EndLine != 1 {
		t.Errorf("lines = %d..%d, want 1..1", sym.StartLine, sym.EndLine)
	}
}

func TestParseKinds(t *testing.T) {
	src := `export interface Options { retries: number }

export class Client {
  connect(): void {}
}

export type Handler = (req: string) => void;

const limit = 10, offset = 0;

var legacy = true;

function internalHelper(x) { return x; }
`

	symbols := New().Parse("src/index.ts", src)

	tests := []struct {
		name       string
		kind       models.SymbolKind
		isExported bool
	}{
		{"Options", models.KindInterface, true},
		{"Client", models.KindClass, true},
		{"Handler", models.KindType, true},
		{"limit", models.KindConst, false},
		{"offset", models.KindConst, false},
		{"legacy", models.KindVariable, false},
		{"internalHelper", models.KindFunction, false},
	}

	for _, tt := range tests {
		sym := findSymbol(symbols, tt.name)
		if sym == nil {
			t.Errorf("symbol %q not found in %v", tt.name, names(symbols))
			continue
		}
		if sym.Kind != tt.kind {
			t.Errorf("%s: kind = %q, want %q", tt.name, sym.Kind, tt.kind)
		}
		if sym.IsExported != tt.isExported {
			t.Errorf("%s: isExported = %v, want %v", tt.name, sym.IsExported, tt.isExported)
		}
	}
}

func TestParseSharedDeclaratorImplementation(t *testing.T) {
	src := "const limit = 10, offset = 0;"
	symbols := New().Parse("src/a.ts", src)
	if len(symbols) != 2 {
		t.Fatalf("got %d symbols, want 2", len(symbols))
	}
	if symbols[0].Implementation != symbols[1].Implementation {
		t.Error("declarators of one statement should share implementation text")
	}
	if symbols[0].StartLine != symbols[1].StartLine || symbols[0].EndLine != symbols[1].EndLine {
		t.Error("declarators of one statement should share the line range")
	}
}

func TestParseJSDoc(t *testing.T) {
	src := `/**
 * Adds two numbers.
 */
export function add(a: number, b: number): number { return a + b; }

export function undocumented(): void {}
`
	symbols := New().Parse("src/math.ts", src)

	add := findSymbol(symbols, "add")
	if add == nil {
		t.Fatal("add not found")
	}
	if !strings.Contains(add.JSDoc, "Adds two numbers") {
		t.Errorf("jsdoc = %q, want the doc block", add.JSDoc)
	}

	un := findSymbol(symbols, "undocumented")
	if un == nil {
		t.Fatal("undocumented not found")
	}
	if un.JSDoc != "" {
		t.Errorf("jsdoc = %q, want empty", un.JSDoc)
	}
}

func TestParseUnannotatedJavaScript(t *testing.T) {
	src := "function greet(name) { return 'hi ' + name; }"
	symbols := New().Parse("lib/greet.js", src)
	if len(symbols) != 1 {
		t.Fatalf("got %d symbols, want 1", len(symbols))
	}
	sym := symbols[0]
	if want := []string{"name: any"}; !reflect.DeepEqual(sym.Parameters, want) {
		t.Errorf("parameters = %v, want %v", sym.Parameters, want)
	}
	if sym.ReturnType != "any" {
		t.Errorf("returnType = %q, want any", sym.ReturnType)
	}
}

func TestParseNestedDeclarations(t *testing.T) {
	src := `export function outer(): void {
  function inner(): void {}
}
`
	symbols := New().Parse("src/nest.ts", src)
	inner := findSymbol(symbols, "inner")
	if inner == nil {
		t.Fatalf("nested declaration not extracted: %v", names(symbols))
	}
	if inner.IsExported {
		t.Error("nested declaration must not inherit the outer export")
	}
}

func TestParseUnknownExtension(t *testing.T) {
	if got := New().Parse("README.md", "# not code"); got != nil {
		t.Errorf("expected nil for unknown extension, got %v", got)
	}
}

func TestParseGarbageDoesNotPanic(t *testing.T) {
	// tree-sitter produces error nodes rather than failing; either way the
	// batch must survive
	_ = New().Parse("src/broken.ts", "export function {{{{")
}

func names(symbols []models.ParsedSymbol) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, s.Name)
	}
	return out
}
