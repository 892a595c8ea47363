package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	ElasticURL    string `yaml:"elasticURL" envconfig:"ELASTIC_URL"`
	ElasticAPIKey string `yaml:"elasticAPIKey" envconfig:"ELASTIC_API_KEY"`
	ElasticIndex  string `yaml:"elasticIndex" envconfig:"ELASTIC_INDEX"`

	GeminiAPIKey string   `yaml:"geminiAPIKey" envconfig:"GEMINI_API_KEY"`
	Models       []string `yaml:"models"`
	MaxRetries   int      `yaml:"maxRetries" split_words:"true"`

	GithubToken string `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	RegistryURL string `yaml:"registryURL" envconfig:"REGISTRY_URL"`
	CDNBaseURL  string `yaml:"cdnBaseURL" envconfig:"CDN_BASE_URL"`

	LogLevel string `yaml:"logLevel" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "HKNPM"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/hk-npm.yaml",
				"config/config.yaml",
				"./hk-npm.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if strings.TrimSpace(cfg.ElasticURL) == "" {
		return Specification{}, fmt.Errorf("%s_ELASTIC_URL is required (env/file/flag)", envPrefix)
	}
	if strings.TrimSpace(cfg.ElasticIndex) == "" {
		return Specification{}, fmt.Errorf("%s_ELASTIC_INDEX must not be blank", envPrefix)
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("elastic-url", c.ElasticURL, "Elasticsearch endpoint URL")
	fs.String("elastic-api-key", c.ElasticAPIKey, "Elasticsearch API key")
	fs.String("elastic-index", c.ElasticIndex, "Elasticsearch index name")

	fs.String("gemini-api-key", c.GeminiAPIKey, "Gemini API key")
	fs.StringSlice("models", c.Models, "Generative models in priority order")
	fs.Int("max-retries", c.MaxRetries, "Generation attempts per model")

	fs.String("github-token", c.GithubToken, "GitHub API token")
	fs.String("registry-url", c.RegistryURL, "npm registry base URL")
	fs.String("cdn-base-url", c.CDNBaseURL, "unpkg-style CDN base URL")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("elastic-url", &c.ElasticURL)
	setStr("elastic-api-key", &c.ElasticAPIKey)
	setStr("elastic-index", &c.ElasticIndex)

	setStr("gemini-api-key", &c.GeminiAPIKey)
	if fs.Changed("models") {
		if v, err := fs.GetStringSlice("models"); err == nil {
			c.Models = v
		}
	}
	setInt("max-retries", &c.MaxRetries)

	setStr("github-token", &c.GithubToken)
	setStr("registry-url", &c.RegistryURL)
	setStr("cdn-base-url", &c.CDNBaseURL)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.ElasticIndex = "npm-packages"
	c.Models = []string{"gemini-2.5-flash", "gemini-2.0-flash"}
	c.MaxRetries = 1
	c.RegistryURL = "https://registry.npmjs.org"
	c.CDNBaseURL = "https://unpkg.com"
	c.LogLevel = "info"
	c.Port = 8080
}
