package fetcher

import (
	"path/filepath"
	"strings"
)

const (
	// maxFileSize rejects individual blobs; bundled or generated output is
	// rarely worth parsing.
	maxFileSize = 100_000

	// maxFiles caps how many files one fetch run brings down.
	maxFiles = 20
)

var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true,
	".js": true, ".jsx": true,
	".mjs": true, ".cjs": true,
}

var sourceDirs = []string{"src/", "lib/", "source/", "packages/"}

var excludedFileMarkers = []string{
	".test.", ".spec.", "__tests__", "__mocks__", ".stories.",
	"/test/", "/tests/",
}

// isSourcePath keeps files with a source extension residing under a
// recognized source directory (or top-level single-segment files), excluding
// test/spec/story files.
func isSourcePath(path string) bool {
	p := strings.ToLower(strings.TrimPrefix(path, "/"))

	if !sourceExtensions[filepath.Ext(p)] {
		return false
	}
	for _, m := range excludedFileMarkers {
		if strings.Contains(p, m) {
			return false
		}
	}
	if !strings.Contains(p, "/") {
		return true
	}
	for _, d := range sourceDirs {
		if strings.HasPrefix(p, d) {
			return true
		}
	}
	return false
}
