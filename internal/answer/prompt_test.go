package answer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ik-labs/hk-npm/pkg/models"
)

func TestBuildGroundedPrompt(t *testing.T) {
	pc := models.PackageContext{
		Found:        true,
		Name:         "axios",
		Version:      "1.7.0",
		Readme:       strings.Repeat("r", 5000),
		CodeExamples: strings.Repeat("e", 5000),
		Exports:      []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"},
		Matches: []models.SymbolMatch{
			{
				Name:           "request",
				Kind:           models.KindFunction,
				FilePath:       "lib/axios.js",
				JSDoc:          "/** Dispatch a request. */",
				Signature:      "function request(config: any): any",
				Implementation: strings.Repeat("i", 2000),
				IsExported:     true,
			},
		},
	}

	prompt := buildGroundedPrompt(pc, "make a GET request")

	if !strings.Contains(prompt, "axios@1.7.0") {
		t.Error("prompt must name the package and version")
	}
	if !strings.Contains(prompt, "Task: make a GET request") {
		t.Error("prompt must state the task")
	}
	if !strings.Contains(prompt, "[exported function] request (lib/axios.js)") {
		t.Error("prompt must carry the symbol header")
	}
	if !strings.Contains(prompt, "Dispatch a request") {
		t.Error("prompt must carry the jsdoc")
	}
	if !strings.Contains(prompt, `"INSUFFICIENT_CONTEXT: <reason>"`) {
		t.Error("prompt must instruct the sentinel reply")
	}

	if n := strings.Count(prompt, "r"); n > maxReadmeExcerpt+100 {
		t.Errorf("readme excerpt not bounded: %d r's", n)
	}
	if n := strings.Count(prompt, strings.Repeat("i", maxImplementationChars+1)); n != 0 {
		t.Error("implementation excerpt not bounded")
	}
	if strings.Contains(prompt, "k, l") {
		t.Error("export list not capped")
	}
}

func TestBuildGroundedPromptOmitsEmptySections(t *testing.T) {
	pc := models.PackageContext{
		Found: true,
		Name:  "left-pad",
		Matches: []models.SymbolMatch{
			{Name: "leftPad", Kind: models.KindFunction, FilePath: "index.js"},
		},
	}

	prompt := buildGroundedPrompt(pc, "pad a string")

	if strings.Contains(prompt, "README excerpt") {
		t.Error("empty readme must not emit a section")
	}
	if strings.Contains(prompt, "Known exports") {
		t.Error("empty export list must not emit a section")
	}
	if strings.Contains(prompt, "@") {
		t.Error("missing version must not emit an @ suffix")
	}
}

func TestExcerptRuneBoundary(t *testing.T) {
	// maxReadmeExcerpt is not a multiple of three, so the cut lands mid-rune
	// unless the boundary is adjusted
	s := strings.Repeat("界", maxReadmeExcerpt)
	got := excerpt(s, maxReadmeExcerpt)
	if !utf8.ValidString(got) {
		t.Errorf("excerpt is not valid UTF-8: %q", got[:12])
	}
	if len(got) > maxReadmeExcerpt {
		t.Errorf("excerpt length = %d, want <= %d", len(got), maxReadmeExcerpt)
	}

	if got := excerpt("short", 100); got != "short" {
		t.Errorf("excerpt(short) = %q", got)
	}
}

func TestBuildUngroundedPrompt(t *testing.T) {
	prompt := buildUngroundedPrompt("ghost-pkg", "do the thing")

	if !strings.Contains(prompt, "ghost-pkg") || !strings.Contains(prompt, "do the thing") {
		t.Error("prompt must name the package and task")
	}
	if !strings.Contains(prompt, "ungrounded") {
		t.Error("prompt must instruct the disclosure comment")
	}
}
