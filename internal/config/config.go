package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and configures the language model provider.
// Provider is one of "openai", "ollama" or "offline"; anything unrecognized
// resolves to the offline provider so the engine stays answerable.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIModel       string  `yaml:"openai_model"`
	OpenAITemperature float64 `yaml:"openai_temperature"`
	OllamaModel       string  `yaml:"ollama_model"`
	OllamaBaseURL     string  `yaml:"ollama_base_url"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ChunkerConfig bounds passage size and overlap in characters.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IndexConfig configures the vector index location and retrieval depth.
type IndexConfig struct {
	Store string `yaml:"store"`
	Dir   string `yaml:"dir"`
	TopK  int    `yaml:"top_k"`

	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant-backed index.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// Config is the root application configuration. Values come from an optional
// YAML file with environment variables taking precedence, read once at
// startup. Invalid values are rejected here, before any component runs.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
}

// Load reads the config file at path (missing file means defaults), applies
// environment overrides and validates. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env + defaults
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:      "offline",
			OpenAIModel:   "gpt-3.5-turbo",
			OllamaModel:   "llama2",
			OllamaBaseURL: "http://localhost:11434",
			TimeoutSecs:   60,
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Model:    "all-MiniLM-L6-v2",
		},
		Chunker: ChunkerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Index: IndexConfig{
			Store: "file",
			Dir:   "legal_index",
			TopK:  4,
		},
	}
}

func applyEnv(cfg *Config) error {
	envString(&cfg.LLM.Provider, "LLM_PROVIDER")
	envString(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&cfg.LLM.OpenAIModel, "OPENAI_MODEL_NAME")
	envString(&cfg.LLM.OllamaModel, "OLLAMA_MODEL_NAME")
	envString(&cfg.LLM.OllamaBaseURL, "OLLAMA_BASE_URL")
	envString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	envString(&cfg.Embedding.Model, "EMBEDDING_MODEL_NAME")
	envString(&cfg.Index.Store, "INDEX_STORE")
	envString(&cfg.Index.Dir, "INDEX_DIR")

	if err := envFloat(&cfg.LLM.OpenAITemperature, "OPENAI_TEMPERATURE"); err != nil {
		return err
	}
	if err := envInt(&cfg.LLM.TimeoutSecs, "LLM_TIMEOUT_SECS"); err != nil {
		return err
	}
	if err := envInt(&cfg.Chunker.ChunkSize, "CHUNK_SIZE"); err != nil {
		return err
	}
	if err := envInt(&cfg.Chunker.ChunkOverlap, "CHUNK_OVERLAP"); err != nil {
		return err
	}
	return envInt(&cfg.Index.TopK, "TOP_K")
}

// Validate rejects configurations the engine cannot run with. It is the only
// place the chunk size/overlap relationship is checked; the chunker itself
// trusts its inputs.
func (c *Config) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.Chunker.ChunkOverlap)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Index.TopK)
	}
	if c.LLM.TimeoutSecs <= 0 {
		return fmt.Errorf("llm timeout_secs must be positive, got %d", c.LLM.TimeoutSecs)
	}
	if c.Index.Store == "qdrant" && c.Index.Qdrant == nil {
		return errors.New("index store is qdrant but qdrant config is missing")
	}
	return nil
}

func envString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, val)
	}
	*dst = n
	return nil
}

func envFloat(dst *float64, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", key, val)
	}
	*dst = f
	return nil
}
