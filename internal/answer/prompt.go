package answer

import (
	"strings"
	"unicode/utf8"

	"github.com/ik-labs/hk-npm/pkg/models"
)

const (
	maxReadmeExcerpt       = 2000
	maxCodeExamplesExcerpt = 1200
	maxExportSummaries     = 10
	maxImplementationChars = 600
)

// buildGroundedPrompt assembles a prompt strictly from retrieved context.
// The model is instructed to use only the supplied APIs and to reply with
// the INSUFFICIENT_CONTEXT sentinel rather than inventing anything.
func buildGroundedPrompt(pc models.PackageContext, intent string) string {
	var b []string

	pkg := pc.Name
	if pc.Version != "" {
		pkg += "@" + pc.Version
	}
	b = append(b,
		"You are a code assistant for the npm package "+pkg+".",
		"Task: "+intent,
	)

	if readme := excerpt(pc.Readme, maxReadmeExcerpt); readme != "" {
		b = append(b, "README excerpt:\n"+readme)
	}
	if examples := excerpt(pc.CodeExamples, maxCodeExamplesExcerpt); examples != "" {
		b = append(b, "Code examples from the README:\n"+examples)
	}
	if len(pc.Exports) > 0 {
		exports := pc.Exports
		if len(exports) > maxExportSummaries {
			exports = exports[:maxExportSummaries]
		}
		b = append(b, "Known exports: "+strings.Join(exports, ", "))
	}

	for _, m := range pc.Matches {
		b = append(b, symbolBlock(m))
	}

	b = append(b,
		"Write a complete, runnable code sample that accomplishes the task using ONLY the APIs shown above. "+
			"Do not invent functions, methods, or options that are not present in the supplied context. "+
			"If the context is insufficient to complete the task, reply with exactly "+
			`"INSUFFICIENT_CONTEXT: <reason>" instead of guessing.`,
	)

	return strings.Join(b, "\n\n")
}

// buildUngroundedPrompt omits all context and asks for a best-effort sample
// with an explicit disclosure.
func buildUngroundedPrompt(packageName, intent string) string {
	return strings.Join([]string{
		"You are a code assistant for the npm package " + packageName + ".",
		"Task: " + intent,
		"No package context could be retrieved. Give a best-effort example from general knowledge, " +
			"and state clearly in a comment that the answer is ungrounded and APIs may be out of date.",
	}, "\n\n")
}

func symbolBlock(m models.SymbolMatch) string {
	visibility := "internal"
	if m.IsExported {
		visibility = "exported"
	}

	var b strings.Builder
	b.WriteString("[" + visibility + " " + string(m.Kind) + "] " + m.Name + " (" + m.FilePath + ")")
	if m.JSDoc != "" {
		b.WriteString("\n" + m.JSDoc)
	}
	if m.Signature != "" {
		b.WriteString("\n" + m.Signature)
	}
	if impl := excerpt(m.Implementation, maxImplementationChars); impl != "" {
		b.WriteString("\n" + impl)
	}
	return b.String()
}

// excerpt trims and cuts at a byte budget without splitting a multi-byte
// rune.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
