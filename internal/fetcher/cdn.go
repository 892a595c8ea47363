package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ik-labs/hk-npm/pkg/models"
)

// entryPointPaths are the common entry-point locations probed against the
// CDN when neither the repository nor the tarball yielded source.
var entryPointPaths = []string{
	"/src/index.ts",
	"/src/index.js",
	"/lib/index.js",
	"/lib/index.ts",
	"/dist/index.js",
	"/index.js",
	"/index.mjs",
}

type cdnStrategy struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func newCDNStrategy(baseURL string, hc *http.Client) *cdnStrategy {
	return &cdnStrategy{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (s *cdnStrategy) Name() string { return string(models.StrategyCDN) }

func (s *cdnStrategy) Attempt(ctx context.Context, req Request) (*models.FetchResult, error) {
	result := &models.FetchResult{Strategy: models.StrategyCDN}

	for _, p := range entryPointPaths {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		content, ok := s.probe(ctx, req.Name, req.Version, p)
		if !ok {
			continue
		}
		result.Files = append(result.Files, models.SourceFile{
			Path:    strings.TrimPrefix(p, "/"),
			Content: content,
			Size:    len(content),
		})
		result.TotalSize += len(content)
	}

	if len(result.Files) == 0 {
		return nil, nil
	}
	return result, nil
}

func (s *cdnStrategy) probe(ctx context.Context, name, version, path string) (string, bool) {
	u := s.baseURL + "/" + name + "@" + version + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return "", false
	}
	return string(b), true
}
