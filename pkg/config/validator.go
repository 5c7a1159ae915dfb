package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Validate Index config
	if c.Index.Backend != "flat" && c.Index.Backend != "pgvector" {
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if c.Index.Backend == "pgvector" && c.Index.DatabaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "index.database_url",
			Message: "database URL is required for the pgvector backend",
		})
	}

	if c.Index.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Index.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "index.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Chunker config
	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.Overfetch < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.overfetch",
			Message: "overfetch must be at least 1",
		})
	}

	if c.Retrieval.YearTolerance != nil && *c.Retrieval.YearTolerance < 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.year_tolerance",
			Message: "year_tolerance must be non-negative",
		})
	}

	// Validate Pipeline config
	if c.Pipeline.MaxFollowUps < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_follow_ups",
			Message: "max_follow_ups must be non-negative",
		})
	}

	if c.Pipeline.MaxAlternatives < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_alternatives",
			Message: "max_alternatives must be non-negative",
		})
	}

	return errors
}
