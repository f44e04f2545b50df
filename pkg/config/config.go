package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Inference  InferenceConfig  `yaml:"inference"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Story      StoryConfig      `yaml:"story"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// InferenceConfig selects the chat model provider.
type InferenceConfig struct {
	Provider string `yaml:"provider"` // "openai" | "gemini" | "grok" | "moonshot" | "kimi"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url,omitempty"`

	// Credentials only come from the environment.
	APIKey string `yaml:"-"`
}

// EmbeddingConfig selects the embedding provider used to build indexes.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "openai" | "gemini"
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	BatchSize int           `yaml:"batch_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	APIKey string `yaml:"-"`
}

// ExtractionConfig tunes character extraction.
type ExtractionConfig struct {
	MaxTokensPerRequest int     `yaml:"max_tokens_per_request"`
	MaxConcurrency      int     `yaml:"max_concurrency"` // 0 = one call per chunk at once
	PartialResults      bool    `yaml:"partial_results"`
	StructuredOutput    bool    `yaml:"structured_output"`
	Temperature         float64 `yaml:"temperature"`
	TopP                float64 `yaml:"top_p"`
}

// StoryConfig tunes story generation.
type StoryConfig struct {
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

const (
	DefaultChatModel           = "gpt-3.5-turbo"
	DefaultGeminiModel         = "gemini-2.5-flash"
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultGeminiEmbedModel    = "text-embedding-004"
	DefaultMaxTokensPerRequest = 12000
	DefaultLocalBaseURL        = "http://localhost:1234/v1"
)

// Load reads the YAML file at path, applies defaults, then environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(cfg, os.Getenv)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}

	openAIKey := getenv("OPENAI_API_KEY")
	geminiKey := getenv("GEMINI_API_KEY")
	grokKey := getenv("GROK_API_KEY")

	if cfg.Inference.Provider == "" {
		switch {
		case geminiKey != "":
			cfg.Inference.Provider = "gemini"
		case grokKey != "":
			cfg.Inference.Provider = "grok"
		default:
			cfg.Inference.Provider = "openai"
		}
	}

	switch cfg.Inference.Provider {
	case "openai":
		cfg.Inference.APIKey = openAIKey
		if v := getenv("OPENAI_MODEL"); v != "" {
			cfg.Inference.Model = v
		}
		if v := getenv("OPENAI_BASE_URL"); v != "" {
			cfg.Inference.BaseURL = v
		}
	case "gemini":
		cfg.Inference.APIKey = geminiKey
		if v := getenv("GEMINI_MODEL"); v != "" {
			cfg.Inference.Model = v
		}
	case "grok":
		cfg.Inference.APIKey = grokKey
		if v := getenv("GROK_MODEL"); v != "" {
			cfg.Inference.Model = v
		}
	case "moonshot", "kimi":
		cfg.Inference.APIKey = getenv("MOONSHOT_API_KEY")
	}

	if cfg.Embedding.Provider == "" {
		if cfg.Inference.Provider == "gemini" {
			cfg.Embedding.Provider = "gemini"
		} else {
			cfg.Embedding.Provider = "openai"
		}
	}
	switch cfg.Embedding.Provider {
	case "gemini":
		cfg.Embedding.APIKey = geminiKey
	default:
		cfg.Embedding.APIKey = openAIKey
		if v := getenv("OPENAI_BASE_URL"); v != "" && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Inference.Model == "" {
		switch cfg.Inference.Provider {
		case "gemini":
			cfg.Inference.Model = DefaultGeminiModel
		case "openai":
			cfg.Inference.Model = DefaultChatModel
		}
	}
	// Without a key the OpenAI provider talks to a local OpenAI-compatible server
	// and lets it pick whatever model is loaded.
	if cfg.Inference.Provider == "openai" && cfg.Inference.APIKey == "" && cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = DefaultLocalBaseURL
		cfg.Inference.Model = ""
	}

	if cfg.Embedding.Model == "" {
		if cfg.Embedding.Provider == "gemini" {
			cfg.Embedding.Model = DefaultGeminiEmbedModel
		} else {
			cfg.Embedding.Model = DefaultEmbeddingModel
		}
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" && cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = DefaultLocalBaseURL
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = time.Hour
	}

	if cfg.Extraction.MaxTokensPerRequest <= 0 {
		cfg.Extraction.MaxTokensPerRequest = DefaultMaxTokensPerRequest
	}
	if cfg.Extraction.Temperature == 0 {
		cfg.Extraction.Temperature = 0.1
	}
	if cfg.Extraction.TopP == 0 {
		cfg.Extraction.TopP = 1
	}

	if cfg.Story.MaxTokens <= 0 {
		cfg.Story.MaxTokens = 1000
	}
	if cfg.Story.Temperature == 0 {
		cfg.Story.Temperature = 0.7
	}
	if cfg.Story.TopP == 0 {
		cfg.Story.TopP = 1
	}
}
