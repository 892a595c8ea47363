package models

// SymbolKind enumerates the declaration kinds extracted from package source.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVariable  SymbolKind = "variable"
)

// ParsedSymbol is one declaration discovered in a source file.
type ParsedSymbol struct {
	Kind           SymbolKind `json:"kind"`
	Name           string     `json:"name"`
	Signature      string     `json:"signature"`
	Implementation string     `json:"implementation"`
	JSDoc          string     `json:"jsdoc,omitempty"`
	FilePath       string     `json:"filePath"`
	StartLine      int        `json:"startLine"`
	EndLine        int        `json:"endLine"`
	IsExported     bool       `json:"isExported"`
	Parameters     []string   `json:"parameters,omitempty"`
	ReturnType     string     `json:"returnType,omitempty"`
	RelevanceScore int        `json:"relevanceScore"`
}

// SourceStrategy records which upstream channel supplied a package's source.
type SourceStrategy string

const (
	StrategyGithub  SourceStrategy = "github"
	StrategyTarball SourceStrategy = "tarball"
	StrategyCDN     SourceStrategy = "cdn"
	StrategyNone    SourceStrategy = "none"
)

// SourceFile is one fetched source file.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// FetchResult is the outcome of a successful source fetch.
type FetchResult struct {
	Files     []SourceFile   `json:"files"`
	Strategy  SourceStrategy `json:"strategy"`
	TotalSize int            `json:"totalSize"`
}

// PackageDocument is the retrieval document indexed per name@version.
// Re-ingestion replaces the whole document; there are no partial updates.
type PackageDocument struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	Description       string         `json:"description"`
	Keywords          []string       `json:"keywords"`
	ReadmeContent     string         `json:"readmeContent"`
	RepositoryURL     string         `json:"repositoryUrl,omitempty"`
	SourceStrategy    SourceStrategy `json:"sourceStrategy"`
	Exports           []string       `json:"exports"`
	Symbols           []ParsedSymbol `json:"symbols"`
	SourceCodeContent string         `json:"sourceCodeContent"`
	CodeExamples      string         `json:"codeExamples"`
	TotalSymbols      int            `json:"totalSymbols"`
	TotalSourceFiles  int            `json:"totalSourceFiles"`
	TotalSourceSize   int            `json:"totalSourceSize"`
}

// ID returns the document identity key.
func (d *PackageDocument) ID() string {
	return d.Name + "@" + d.Version
}

// SymbolMatch is the query-scoped subset of symbol fields used to ground an
// answer. Snippet is truncated for display; Implementation is kept whole for
// prompt construction.
type SymbolMatch struct {
	Name           string     `json:"name"`
	Kind           SymbolKind `json:"kind"`
	FilePath       string     `json:"filePath"`
	Snippet        string     `json:"snippet"`
	IsExported     bool       `json:"isExported"`
	RelevanceScore int        `json:"relevanceScore,omitempty"`
	Implementation string     `json:"-"`
	JSDoc          string     `json:"jsdoc,omitempty"`
	Signature      string     `json:"signature,omitempty"`
}

// PackageContext is everything retrieval hands to the prompt builder for one
// package: the matched symbols plus document-level grounding material.
type PackageContext struct {
	Found        bool
	Name         string
	Version      string
	Readme       string
	Exports      []string
	CodeExamples string
	Matches      []SymbolMatch
}

// AnswerRequest asks for a grounded code sample.
type AnswerRequest struct {
	Intent                  string `json:"intent"`
	PackageName             string `json:"packageName"`
	SearchQuery             string `json:"searchQuery,omitempty"`
	MaxSnippets             int    `json:"maxSnippets,omitempty"`
	AllowUngroundedFallback bool   `json:"allowUngroundedFallback,omitempty"`
}

// Citation names one API the generated code is grounded on.
type Citation struct {
	Name       string     `json:"name"`
	Kind       SymbolKind `json:"kind"`
	FilePath   string     `json:"filePath"`
	JSDoc      string     `json:"jsdoc,omitempty"`
	Signature  string     `json:"signature,omitempty"`
	IsExported bool       `json:"isExported"`
}

// AnswerResponse is the success payload of the answer pipeline.
type AnswerResponse struct {
	Intent      string     `json:"intent"`
	PackageName string     `json:"packageName"`
	SearchQuery string     `json:"searchQuery"`
	Code        string     `json:"code"`
	Context     []Citation `json:"context"`
	Grounded    bool       `json:"grounded"`
	Note        string     `json:"note,omitempty"`
}

// PackageMetadata is the registry view of a package used during ingestion.
type PackageMetadata struct {
	Name          string
	Version       string
	Description   string
	Keywords      []string
	Readme        string
	RepositoryURL string
	TypesEntry    string
}

// PackageHit is one corpus-wide discovery result.
type PackageHit struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// IngestionSummary reports a batch ingestion run.
type IngestionSummary struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}
