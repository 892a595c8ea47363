package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ik-labs/hk-npm/internal/config"
	"github.com/ik-labs/hk-npm/internal/fetcher"
	"github.com/ik-labs/hk-npm/internal/indexer"
	"github.com/ik-labs/hk-npm/internal/parser"
	"github.com/ik-labs/hk-npm/internal/registry"
	"github.com/ik-labs/hk-npm/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("hk-npm-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	names := fs.Args()
	if len(names) == 0 {
		log.Fatal("usage: indexer [flags] <package>[@version] ...")
	}

	ctx := context.Background()

	st, err := store.New(cfg.ElasticURL, cfg.ElasticAPIKey, cfg.ElasticIndex)
	if err != nil {
		log.Fatal(err)
	}
	if err := st.EnsureIndex(ctx); err != nil {
		log.Fatal(err)
	}

	reg := registry.New(cfg.RegistryURL, cfg.CDNBaseURL, nil)
	f := fetcher.New(fetcher.Config{
		GithubToken: cfg.GithubToken,
		CDNBaseURL:  cfg.CDNBaseURL,
		Registry:    reg,
	})
	ix := indexer.New(reg, f, parser.New(), st)

	failed := 0
	for _, arg := range names {
		name, version := splitNameVersion(arg)
		if err := ix.IndexPackage(ctx, name, version); err != nil {
			zlog.Error().Err(err).Str("package", arg).Msg("ingestion failed")
			failed++
		}
	}

	zlog.Info().Int("requested", len(names)).Int("failed", failed).Msg("ingestion finished")
	if failed == len(names) {
		os.Exit(1)
	}
}

// splitNameVersion splits "name@version", keeping the leading @ of scoped
// package names intact.
func splitNameVersion(arg string) (name, version string) {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}
