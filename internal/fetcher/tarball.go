package fetcher

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/ik-labs/hk-npm/internal/registry"
	"github.com/ik-labs/hk-npm/pkg/models"
)

type tarballStrategy struct {
	registry *registry.Client
	http     *http.Client
}

func newTarballStrategy(reg *registry.Client, hc *http.Client) *tarballStrategy {
	return &tarballStrategy{registry: reg, http: hc}
}

func (s *tarballStrategy) Name() string { return string(models.StrategyTarball) }

func (s *tarballStrategy) Attempt(ctx context.Context, req Request) (*models.FetchResult, error) {
	tarballURL, err := s.registry.TarballURL(ctx, req.Name, req.Version)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "hk-npm-tarball-*")
	if err != nil {
		return nil, err
	}
	// scratch is removed on every exit path
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", scratch).Msg("scratch cleanup failed")
		}
	}()

	if err := s.download(ctx, tarballURL, scratch); err != nil {
		return nil, err
	}

	result := &models.FetchResult{Strategy: models.StrategyTarball}
	walkErr := godirwalk.Walk(scratch, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(scratch, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if !isSourcePath(rel) {
				return nil
			}
			if len(result.Files) >= maxFiles {
				return nil
			}

			b, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", rel).Msg("extracted file unreadable")
				return nil
			}
			if len(b) > maxFileSize {
				return nil
			}
			result.Files = append(result.Files, models.SourceFile{
				Path:    rel,
				Content: string(b),
				Size:    len(b),
			})
			result.TotalSize += len(b)
			return nil
		},
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(result.Files) == 0 {
		return nil, nil
	}
	return result, nil
}

// download streams the tarball and extracts it under dir. npm tarballs nest
// everything below a leading "package/" segment, which is stripped.
func (s *tarballStrategy) download(ctx context.Context, tarballURL, dir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("tarball download: " + resp.Status)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("tarball gunzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tarball read: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.ToSlash(hdr.Name)
		if i := strings.Index(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if name == "" {
			continue
		}

		dest := filepath.Join(dir, filepath.FromSlash(name))
		// refuse entries that escape the scratch directory
		if rel, err := filepath.Rel(dir, dest); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, io.LimitReader(tr, maxFileSize+1))
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
}
