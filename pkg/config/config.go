package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL    string `yaml:"base_url"`
		ChatModel  string `yaml:"chat_model"`
		EmbedModel string `yaml:"embed_model"`
		MaxTokens  int    `yaml:"max_tokens"`
	} `yaml:"llm"`

	Index struct {
		Backend     string  `yaml:"backend"` // "flat" or "pgvector"
		Path        string  `yaml:"path"`
		MetaPath    string  `yaml:"meta_path"`
		VectorDim   int     `yaml:"vector_dim"`
		BatchSize   int     `yaml:"batch_size"`
		RateLimit   float64 `yaml:"rate_limit"` // embedding batches per second
		DatabaseURL string  `yaml:"database_url"`
		TableName   string  `yaml:"table_name"`
	} `yaml:"index"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`

	Retrieval struct {
		TopK      int `yaml:"top_k"`
		Overfetch int `yaml:"overfetch"`
		// Pointer so an explicit 0 (exact-year matching only) is
		// distinguishable from unset.
		YearTolerance *int `yaml:"year_tolerance"`
	} `yaml:"retrieval"`

	Pipeline struct {
		MaxFollowUps    int `yaml:"max_follow_ups"`
		MaxAlternatives int `yaml:"max_alternatives"`
		GapChunks       int `yaml:"gap_chunks"`
		GapExcerptChars int `yaml:"gap_excerpt_chars"`
	} `yaml:"pipeline"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/finsight/config.yaml"),
			"/etc/finsight/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "flat"
	}
	if config.Index.Path == "" {
		config.Index.Path = "index.bin"
	}
	if config.Index.MetaPath == "" {
		config.Index.MetaPath = "meta.json"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}
	if config.Index.RateLimit == 0 {
		config.Index.RateLimit = 2.0
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "chunks"
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1200
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 300
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 4
	}
	if config.Retrieval.Overfetch == 0 {
		config.Retrieval.Overfetch = 3
	}
	if config.Retrieval.YearTolerance == nil {
		tolerance := 1
		config.Retrieval.YearTolerance = &tolerance
	}

	if config.Pipeline.MaxFollowUps == 0 {
		config.Pipeline.MaxFollowUps = 4
	}
	if config.Pipeline.MaxAlternatives == 0 {
		config.Pipeline.MaxAlternatives = 3
	}
	if config.Pipeline.GapChunks == 0 {
		config.Pipeline.GapChunks = 3
	}
	if config.Pipeline.GapExcerptChars == 0 {
		config.Pipeline.GapExcerptChars = 300
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
}
