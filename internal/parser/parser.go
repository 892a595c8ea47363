package parser

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/ik-labs/hk-npm/pkg/models"
)

// jsdocLookback is how far back (in bytes) we scan for a doc comment
// immediately preceding a declaration.
const jsdocLookback = 500

// Parser extracts typed symbols from TypeScript/JavaScript source files.
type Parser struct{}

// New creates a new Parser.
func New() *Parser {
	return &Parser{}
}

// Parse walks the syntax tree of one file and returns a ParsedSymbol for
// every function/class/interface/type-alias/variable declaration at any
// nesting depth. Both exported and internal symbols are retained; relevance
// filtering happens later. A failure on one file never aborts a batch: it is
// logged and yields zero symbols.
func (p *Parser) Parse(filePath, source string) (symbols []models.ParsedSymbol) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("path", filePath).Interface("panic", r).Msg("parse failed")
			symbols = nil
		}
	}()

	lang := languageFor(filePath)
	if lang == nil {
		return nil
	}

	sp := sitter.NewParser()
	sp.SetLanguage(lang)

	src := []byte(source)
	tree := sp.Parse(nil, src)
	if tree == nil {
		log.Warn().Str("path", filePath).Msg("parse produced no tree")
		return nil
	}

	ex := &extractor{filePath: filePath, source: src}
	ex.walk(tree.RootNode())
	return ex.symbols
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

type extractor struct {
	filePath string
	source   []byte
	symbols  []models.ParsedSymbol
}

func (e *extractor) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		e.emitFunction(node)
	case "class_declaration", "abstract_class_declaration":
		e.emitNamed(node, models.KindClass)
	case "interface_declaration":
		e.emitNamed(node, models.KindInterface)
	case "type_alias_declaration", "enum_declaration":
		e.emitNamed(node, models.KindType)
	case "lexical_declaration", "variable_declaration":
		e.emitVariables(node)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i))
	}
}

// emitFunction handles function-like declarations, capturing parameters and
// the return type (defaulting to "any" when unannotated).
func (e *extractor) emitFunction(node *sitter.Node) {
	name := e.fieldContent(node, "name")
	if name == "" {
		// anonymous declarations carry nothing to cite
		return
	}

	params := e.parameters(node)
	returnType := e.typeContent(node.ChildByFieldName("return_type"))
	if returnType == "" {
		returnType = "any"
	}

	sym := e.base(node, models.KindFunction, name)
	sym.Parameters = params
	sym.ReturnType = returnType
	sym.Signature = "function " + name + "(" + strings.Join(params, ", ") + "): " + returnType
	e.symbols = append(e.symbols, sym)
}

func (e *extractor) emitNamed(node *sitter.Node, kind models.SymbolKind) {
	name := e.fieldContent(node, "name")
	if name == "" {
		return
	}
	sym := e.base(node, kind, name)
	sym.Signature = declarationHeader(sym.Implementation)
	e.symbols = append(e.symbols, sym)
}

// emitVariables emits one symbol per declarator; all declarators of one
// statement share the statement's implementation text and line range.
func (e *extractor) emitVariables(node *sitter.Node) {
	kind := models.KindVariable
	if strings.HasPrefix(node.Content(e.source), "const") {
		kind = models.KindConst
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			// destructuring patterns have no single citable name
			continue
		}
		sym := e.base(node, kind, nameNode.Content(e.source))
		sym.Signature = declarationHeader(sym.Implementation)
		e.symbols = append(e.symbols, sym)
	}
}

// base fills the fields common to every symbol kind.
func (e *extractor) base(node *sitter.Node, kind models.SymbolKind, name string) models.ParsedSymbol {
	return models.ParsedSymbol{
		Kind:           kind,
		Name:           name,
		Implementation: node.Content(e.source),
		JSDoc:          e.jsdocBefore(node),
		FilePath:       e.filePath,
		StartLine:      int(node.StartPoint().Row) + 1,
		EndLine:        int(node.EndPoint().Row) + 1,
		IsExported:     isExported(node),
	}
}

func (e *extractor) fieldContent(node *sitter.Node, field string) string {
	c := node.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(e.source)
}

// parameters renders "name: type" per formal parameter, defaulting the type
// to "any" for unannotated parameters.
func (e *extractor) parameters(node *sitter.Node) []string {
	formal := node.ChildByFieldName("parameters")
	if formal == nil {
		return nil
	}

	var out []string
	for i := 0; i < int(formal.NamedChildCount()); i++ {
		p := formal.NamedChild(i)
		switch p.Type() {
		case "required_parameter", "optional_parameter":
			name := e.fieldContent(p, "pattern")
			typ := e.typeContent(p.ChildByFieldName("type"))
			if typ == "" {
				typ = "any"
			}
			if name != "" {
				out = append(out, name+": "+typ)
			}
		case "identifier":
			out = append(out, p.Content(e.source)+": any")
		case "assignment_pattern":
			if left := p.ChildByFieldName("left"); left != nil {
				out = append(out, left.Content(e.source)+": any")
			}
		case "rest_pattern":
			out = append(out, p.Content(e.source)+": any")
		}
	}
	return out
}

// typeContent strips the leading colon from a type_annotation node.
func (e *extractor) typeContent(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(node.Content(e.source), ":"))
}

// jsdocBefore scans the lookback window immediately preceding the
// declaration (or its wrapping export statement) for a /** ... */ block.
func (e *extractor) jsdocBefore(node *sitter.Node) string {
	start := int(node.StartByte())
	if p := node.Parent(); p != nil && p.Type() == "export_statement" {
		start = int(p.StartByte())
	}

	from := start - jsdocLookback
	if from < 0 {
		from = 0
	}
	window := string(e.source[from:start])

	open := strings.LastIndex(window, "/**")
	if open < 0 {
		return ""
	}
	closeRel := strings.Index(window[open:], "*/")
	if closeRel < 0 {
		return ""
	}
	// Only whitespace may sit between the comment close and the declaration.
	if strings.TrimSpace(window[open+closeRel+2:]) != "" {
		return ""
	}
	return strings.TrimSpace(window[open : open+closeRel+2])
}

func isExported(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "export_statement":
			return true
		case "program":
			return false
		case "statement_block", "class_body", "function_declaration", "method_definition":
			// nested scope; an enclosing export no longer applies
			return false
		}
	}
	return false
}

// declarationHeader is a short human-readable signature for non-function
// declarations: the declaration text up to its body or first line break.
func declarationHeader(impl string) string {
	header := impl
	if i := strings.IndexAny(header, "{\n"); i >= 0 {
		header = header[:i]
	}
	header = strings.TrimSpace(header)
	if len(header) > 160 {
		header = header[:160]
	}
	return header
}
