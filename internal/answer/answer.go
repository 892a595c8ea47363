// Package answer turns an intent plus retrieved package context into a
// citation-bearing code sample, with model and attempt fallback.
package answer

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ik-labs/hk-npm/internal/ai"
	"github.com/ik-labs/hk-npm/internal/search"
	"github.com/ik-labs/hk-npm/pkg/models"
)

// ungroundedNote warns callers that an ungrounded answer was produced from
// model knowledge alone.
const ungroundedNote = "Generated without package context; verify against the official documentation."

// ContextRetriever supplies the grounding context for one package and query.
type ContextRetriever interface {
	PackageContext(ctx context.Context, packageName, query string, maxSnippets int) models.PackageContext
}

// Service is the answer pipeline: retrieve, prompt, generate.
type Service struct {
	retriever  ContextRetriever
	generator  ai.Generator
	models     []string
	maxRetries int
}

// NewService creates an answer service. models are tried in priority order;
// maxRetries is the attempt budget per model (minimum 1).
func NewService(retriever ContextRetriever, generator ai.Generator, modelNames []string, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{
		retriever:  retriever,
		generator:  generator,
		models:     modelNames,
		maxRetries: maxRetries,
	}
}

// GenerateAnswer runs the grounded-answer pipeline for one request.
//
// With no model configured it fails before any network call. When retrieval
// yields no symbol matches and the caller has not opted into ungrounded
// fallback, it rejects without generating: paying for a known-bad answer
// helps nobody.
func (s *Service) GenerateAnswer(ctx context.Context, req *models.AnswerRequest) (*models.AnswerResponse, error) {
	if s.generator == nil || len(s.models) == 0 {
		return nil, models.ErrNoModelConfigured
	}

	query := strings.TrimSpace(req.SearchQuery)
	if query == "" {
		query = req.Intent
	}
	maxSnippets := req.MaxSnippets
	if maxSnippets <= 0 {
		maxSnippets = search.DefaultMaxSnippets
	}

	pc := s.retriever.PackageContext(ctx, req.PackageName, query, maxSnippets)
	grounded := pc.Found && len(pc.Matches) > 0

	if !grounded && !req.AllowUngroundedFallback {
		return nil, &models.UngroundedError{PackageName: req.PackageName, Query: query}
	}

	var prompt string
	if grounded {
		prompt = buildGroundedPrompt(pc, req.Intent)
	} else {
		prompt = buildUngroundedPrompt(req.PackageName, req.Intent)
	}

	code, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp := &models.AnswerResponse{
		Intent:      req.Intent,
		PackageName: req.PackageName,
		SearchQuery: query,
		Code:        strings.TrimSpace(code),
		Context:     citations(pc.Matches),
		Grounded:    grounded,
	}
	if !grounded {
		resp.Context = []models.Citation{}
		resp.Note = ungroundedNote
	}
	return resp, nil
}

// generate iterates the configured models in priority order. A retryable
// failure is attempted again on the same model up to the retry budget; a
// fatal failure moves to the next model immediately. Exhausting every model
// yields the last error.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range s.models {
		for attempt := 1; attempt <= s.maxRetries; attempt++ {
			out, err := s.generator.Generate(ctx, model, prompt)
			if err == nil {
				return out, nil
			}
			lastErr = err
			log.Warn().Err(err).
				Str("model", model).
				Int("attempt", attempt).
				Msg("generation attempt failed")
			if ai.Classify(err) != ai.Retryable {
				break
			}
		}
	}
	return "", lastErr
}

func citations(matches []models.SymbolMatch) []models.Citation {
	out := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.Citation{
			Name:       m.Name,
			Kind:       m.Kind,
			FilePath:   m.FilePath,
			JSDoc:      m.JSDoc,
			Signature:  m.Signature,
			IsExported: m.IsExported,
		})
	}
	return out
}
