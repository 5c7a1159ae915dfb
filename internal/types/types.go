package types

import (
	"context"

	"github.com/xhad/finsight/internal/models"
)

// Core interfaces

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer is a single chat completion call against the generation service.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error)
}

// Hit is one nearest-neighbour search result: the 0-based vector row and its
// distance from the query vector.
type Hit struct {
	Row      int
	Distance float32
}

// VectorIndex is a row-order addressed similarity index. Row ids are dense
// and assigned in Add order.
type VectorIndex interface {
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]Hit, error)
	Len() int
}

// Extractor obtains the raw text blob (prose plus any tables rendered as
// delimited text) for one document path.
type Extractor interface {
	Extract(path string) (string, error)
}

// Retriever returns the top-k chunks for a query, optionally filtered by
// year proximity. targetYear 0 disables temporal filtering.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k, targetYear int) ([]models.ScoredChunk, error)
}

// Answerer answers one focused question against the corpus.
type Answerer interface {
	Answer(ctx context.Context, question string, targetYear int) (models.Answer, error)
	AnswerWithFallback(ctx context.Context, question string, targetYear int) (models.Answer, error)
}

// CompletionOptions are per-call generation parameters. Temperature 0 gives
// deterministic decoding for grounded answering; analysis and paraphrase
// calls use small non-zero temperatures.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}
