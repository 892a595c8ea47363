package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/ik-labs/hk-npm/internal/ai"
	"github.com/ik-labs/hk-npm/internal/answer"
	"github.com/ik-labs/hk-npm/internal/config"
	"github.com/ik-labs/hk-npm/internal/fetcher"
	"github.com/ik-labs/hk-npm/internal/indexer"
	"github.com/ik-labs/hk-npm/internal/parser"
	"github.com/ik-labs/hk-npm/internal/registry"
	"github.com/ik-labs/hk-npm/internal/search"
	"github.com/ik-labs/hk-npm/internal/store"
	"github.com/ik-labs/hk-npm/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("hk-npm-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("index", cfg.ElasticIndex).Strs("models", cfg.Models).Msg("starting hk-npm api")

	ctx := context.Background()

	st, err := store.New(cfg.ElasticURL, cfg.ElasticAPIKey, cfg.ElasticIndex)
	if err != nil {
		log.Fatalf("Failed to create index client: %v", err)
	}
	if err := st.EnsureIndex(ctx); err != nil {
		log.Fatalf("Failed to ensure index: %v", err)
	}

	var generator ai.Generator
	if cfg.GeminiAPIKey != "" {
		generator, err = ai.NewGenerator(ctx, &ai.ClientConfig{
			APIKey:   cfg.GeminiAPIKey,
			Provider: ai.ProviderGemini,
		})
		if err != nil {
			log.Fatalf("Failed to create generation client: %v", err)
		}
	} else {
		logger.Warn().Msg("no Gemini API key configured; answer requests will be rejected")
	}

	reg := registry.New(cfg.RegistryURL, cfg.CDNBaseURL, nil)
	f := fetcher.New(fetcher.Config{
		GithubToken: cfg.GithubToken,
		CDNBaseURL:  cfg.CDNBaseURL,
		Registry:    reg,
	})
	ix := indexer.New(reg, f, parser.New(), st)

	retriever := search.NewRetriever(st)
	svc := answer.NewService(retriever, generator, cfg.Models, cfg.MaxRetries)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/answer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req models.AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Intent == "" || req.PackageName == "" {
			writeError(w, http.StatusBadRequest, "intent and packageName are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		resp, err := svc.GenerateAnswer(ctx, &req)
		if err != nil {
			var ungrounded *models.UngroundedError
			switch {
			case errors.Is(err, models.ErrNoModelConfigured):
				writeError(w, http.StatusInternalServerError, err.Error())
			case errors.As(err, &ungrounded):
				writeError(w, http.StatusNotFound, err.Error())
			default:
				writeError(w, http.StatusBadGateway, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
		hlog.FromRequest(r).Info().
			Str("package", req.PackageName).
			Bool("grounded", resp.Grounded).
			Msg("answer served")
	})

	mux.HandleFunc("/reindex", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Packages []string `json:"packages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Packages) == 0 {
			writeError(w, http.StatusBadRequest, "packages list is required")
			return
		}

		summary := ix.IndexPackages(r.Context(), req.Packages)
		writeJSON(w, http.StatusOK, summary)
	})

	mux.HandleFunc("/packages/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter q")
			return
		}
		k := 10
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		hits, err := st.SearchPackages(ctx, q, k)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if hits == nil {
			hits = []models.PackageHit{}
		}
		writeJSON(w, http.StatusOK, hits)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError keeps every public failure a structured {error} payload.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
