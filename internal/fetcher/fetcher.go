// Package fetcher obtains a bounded set of source files for an npm package,
// trying upstream channels in priority order: repository tree, registry
// tarball, CDN probing.
package fetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ik-labs/hk-npm/internal/registry"
	"github.com/ik-labs/hk-npm/pkg/models"
)

// Request identifies the package whose source is wanted.
type Request struct {
	Name          string
	Version       string
	RepositoryURL string
}

// Strategy is one upstream channel. Attempt returns nil (with or without an
// error) when the channel yields nothing; errors are non-fatal to the fetch.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (*models.FetchResult, error)
}

// Fetcher runs strategies sequentially, first non-nil result wins.
type Fetcher struct {
	strategies []Strategy
}

// Config carries the knobs the default strategy set needs.
type Config struct {
	GithubToken string
	CDNBaseURL  string
	Registry    *registry.Client
	HTTPClient  *http.Client
}

// New wires the default strategy order: github, tarball, cdn.
func New(cfg Config) *Fetcher {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		strategies: []Strategy{
			newGithubStrategy(cfg.GithubToken),
			newTarballStrategy(cfg.Registry, hc),
			newCDNStrategy(cfg.CDNBaseURL, hc),
		},
	}
}

// NewWithStrategies creates a Fetcher with a custom strategy chain, used in
// tests and by callers that want to reorder channels.
func NewWithStrategies(strategies ...Strategy) *Fetcher {
	return &Fetcher{strategies: strategies}
}

// Fetch tries each strategy in order and returns the first result with at
// least one file. Exhausting every strategy yields (nil, nil): the caller
// proceeds with zero symbols and sourceStrategy "none".
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*models.FetchResult, error) {
	for _, s := range f.strategies {
		res, err := s.Attempt(ctx, req)
		if err != nil {
			log.Warn().Err(err).
				Str("package", req.Name).
				Str("strategy", s.Name()).
				Msg("source fetch strategy failed")
			continue
		}
		if res != nil && len(res.Files) > 0 {
			log.Info().
				Str("package", req.Name).
				Str("strategy", s.Name()).
				Int("files", len(res.Files)).
				Int("bytes", res.TotalSize).
				Msg("source fetched")
			return res, nil
		}
	}
	return nil, nil
}
