package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/ik-labs/hk-npm/pkg/models"
)

// blobWorkers bounds parallel blob fetches within one tree.
const blobWorkers = 5

type githubStrategy struct {
	gh *gh.Client
}

func newGithubStrategy(token string) *githubStrategy {
	if token == "" {
		return &githubStrategy{gh: gh.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &githubStrategy{gh: gh.NewClient(oauth2.NewClient(context.Background(), ts))}
}

func (s *githubStrategy) Name() string { return string(models.StrategyGithub) }

func (s *githubStrategy) Attempt(ctx context.Context, req Request) (*models.FetchResult, error) {
	owner, repo, ok := ResolveRepo(req.RepositoryURL)
	if !ok {
		return nil, nil
	}

	tree, err := s.resolveTree(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path string
		sha  string
		size int
	}
	var candidates []candidate
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		if e.GetSize() > maxFileSize {
			continue
		}
		if !isSourcePath(e.GetPath()) {
			continue
		}
		candidates = append(candidates, candidate{path: e.GetPath(), sha: e.GetSHA(), size: e.GetSize()})
		if len(candidates) == maxFiles {
			break
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// each goroutine writes its own slot
	files := make([]models.SourceFile, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobWorkers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			content, err := s.blobContent(gctx, owner, repo, c.sha)
			if err != nil {
				// one unreadable blob should not sink the strategy
				log.Warn().Err(err).Str("path", c.path).Msg("blob fetch failed")
				return nil
			}
			files[i] = models.SourceFile{Path: c.path, Content: content, Size: len(content)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.FetchResult{Strategy: models.StrategyGithub}
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		result.Files = append(result.Files, f)
		result.TotalSize += f.Size
	}
	if len(result.Files) == 0 {
		return nil, nil
	}
	return result, nil
}

// resolveTree lists the repository tree recursively, resolving the default
// branch first and falling back through the well-known branch names.
func (s *githubStrategy) resolveTree(ctx context.Context, owner, repo string) (*gh.Tree, error) {
	branches := []string{"main", "master"}
	if r, _, err := s.gh.Repositories.Get(ctx, owner, repo); err == nil && r.GetDefaultBranch() != "" {
		branches = append([]string{r.GetDefaultBranch()}, branches...)
	}

	var lastErr error
	for _, b := range branches {
		tree, _, err := s.gh.Git.GetTree(ctx, owner, repo, b, true)
		if err == nil {
			return tree, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("list tree %s/%s: %w", owner, repo, lastErr)
}

func (s *githubStrategy) blobContent(ctx context.Context, owner, repo, sha string) (string, error) {
	blob, _, err := s.gh.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", err
	}
	if blob.GetEncoding() == "base64" {
		raw := strings.ReplaceAll(blob.GetContent(), "\n", "")
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return blob.GetContent(), nil
}

// ResolveRepo extracts an owner/repo pair from the repository URL forms the
// registry serves: "owner/repo" shorthand, "git+https://host/owner/repo.git"
// and plain "https://host/owner/repo".
func ResolveRepo(repositoryURL string) (owner, repo string, ok bool) {
	raw := strings.TrimSpace(repositoryURL)
	if raw == "" {
		return "", "", false
	}
	raw = strings.TrimPrefix(raw, "git+")

	// shorthand with no scheme or host
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "git@") {
		parts := strings.Split(strings.Trim(raw, "/"), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], strings.TrimSuffix(parts[1], ".git"), true
		}
		return "", "", false
	}

	// ssh form: git@github.com:owner/repo.git
	if strings.HasPrefix(raw, "git@") {
		rest := raw[strings.Index(raw, ":")+1:]
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		if len(parts) >= 2 {
			return parts[0], strings.TrimSuffix(parts[1], ".git"), true
		}
		return "", "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
