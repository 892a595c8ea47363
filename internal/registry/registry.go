// Package registry is a read-only client for the npm package registry and
// its unpkg-style CDN mirror.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ik-labs/hk-npm/pkg/models"
)

// Client talks to the npm registry metadata endpoints.
type Client struct {
	registryURL string
	cdnBaseURL  string
	http        *http.Client
}

// New creates a registry client. httpClient may be nil.
func New(registryURL, cdnBaseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		registryURL: strings.TrimRight(registryURL, "/"),
		cdnBaseURL:  strings.TrimRight(cdnBaseURL, "/"),
		http:        httpClient,
	}
}

type packument struct {
	Name     string            `json:"name"`
	Readme   string            `json:"readme"`
	DistTags map[string]string `json:"dist-tags"`
	Versions map[string]struct {
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
		Types       string   `json:"types"`
		Typings     string   `json:"typings"`
		Repository  any      `json:"repository"`
	} `json:"versions"`
}

// Metadata fetches the packument for name and resolves version ("" means the
// latest dist-tag). A missing README is not an error; a missing package is.
func (c *Client) Metadata(ctx context.Context, name, version string) (*models.PackageMetadata, error) {
	u := c.registryURL + "/" + url.PathEscape(name)
	var p packument
	if err := c.getJSON(ctx, u, &p); err != nil {
		return nil, fmt.Errorf("registry metadata for %s: %w", name, err)
	}

	if version == "" {
		version = p.DistTags["latest"]
	}
	v, ok := p.Versions[version]
	if !ok {
		return nil, fmt.Errorf("registry metadata for %s: version %q not found", name, version)
	}

	typesEntry := v.Types
	if typesEntry == "" {
		typesEntry = v.Typings
	}

	return &models.PackageMetadata{
		Name:          name,
		Version:       version,
		Description:   v.Description,
		Keywords:      v.Keywords,
		Readme:        p.Readme,
		RepositoryURL: repositoryURL(v.Repository),
		TypesEntry:    typesEntry,
	}, nil
}

// TarballURL resolves the exact version's tarball URL via the registry's
// per-version endpoint.
func (c *Client) TarballURL(ctx context.Context, name, version string) (string, error) {
	u := c.registryURL + "/" + url.PathEscape(name) + "/" + url.PathEscape(version)
	var out struct {
		Dist struct {
			Tarball string `json:"tarball"`
		} `json:"dist"`
	}
	if err := c.getJSON(ctx, u, &out); err != nil {
		return "", fmt.Errorf("tarball url for %s@%s: %w", name, version, err)
	}
	if out.Dist.Tarball == "" {
		return "", fmt.Errorf("tarball url for %s@%s: empty dist.tarball", name, version)
	}
	return out.Dist.Tarball, nil
}

// DeclarationFile fetches a type-declaration file from the CDN. Absence is
// recoverable: a 404 yields an empty string and no error.
func (c *Client) DeclarationFile(ctx context.Context, name, version, entry string) (string, error) {
	if entry == "" {
		entry = "index.d.ts"
	}
	u := c.cdnBaseURL + "/" + name + "@" + version + "/" + strings.TrimPrefix(entry, "./")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("cdn declaration fetch: " + resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) getJSON(ctx context.Context, u string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

// repositoryURL tolerates both the string and {type,url} object forms the
// registry serves for the repository field.
func repositoryURL(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case map[string]any:
		if s, ok := r["url"].(string); ok {
			return s
		}
	}
	return ""
}

var declExportRe = regexp.MustCompile(`(?m)^\s*export\s+(?:declare\s+)?(?:abstract\s+)?(?:function|class|interface|type|enum|const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// ExtractTypeExports scans a declaration file for exported identifiers, the
// legacy type-only export list kept on the package document.
func ExtractTypeExports(dts string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range declExportRe.FindAllStringSubmatch(dts, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\n(.*?)```")

// ExtractCodeBlocks concatenates the fenced code blocks of a README.
func ExtractCodeBlocks(readme string) string {
	var blocks []string
	for _, m := range fencedBlockRe.FindAllStringSubmatch(readme, -1) {
		if b := strings.TrimSpace(m[1]); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}
