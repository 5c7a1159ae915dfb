// Package retriever resolves a query to the closest stored chunks, with an
// optional fiscal-year filter driven by years mentioned in the query text.
package retriever

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/xhad/finsight/internal/models"
	"github.com/xhad/finsight/internal/types"
	"github.com/xhad/finsight/pkg/index"
)

var yearPattern = regexp.MustCompile(`20\d{2}`)

// YearFromQuery returns the first four-digit year mentioned in the query,
// or 0 when the query names none.
func YearFromQuery(query string) int {
	match := yearPattern.FindString(query)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

type RetrieverConfig struct {
	TopK          int
	Overfetch     int // multiplier applied to k when a year filter is active
	YearTolerance int
}

// Retriever embeds queries and searches the vector index, resolving hits
// through chunk metadata.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	index    types.VectorIndex
	meta     index.Metadata
}

func NewWithConfig(config RetrieverConfig, embedder types.Embedder, ix types.VectorIndex, meta index.Metadata) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.Overfetch <= 0 {
		config.Overfetch = 3
	}
	if config.YearTolerance < 0 {
		config.YearTolerance = 1
	}
	return &Retriever{
		config:   config,
		embedder: embedder,
		index:    ix,
		meta:     meta,
	}
}

// Retrieve returns up to k chunks closest to the query. When targetYear is
// non-zero the search over-fetches and keeps only chunks whose year falls
// within the configured tolerance; chunks with no known year never pass the
// filter. Fewer than k results means the corpus simply had no more matches.
func (r *Retriever) Retrieve(ctx context.Context, query string, k, targetYear int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = r.config.TopK
	}

	vectors, err := r.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}

	searchK := k
	if targetYear != 0 {
		searchK = k * r.config.Overfetch
	}

	hits, err := r.index.Search(vectors[0], searchK)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var results []models.ScoredChunk
	for _, hit := range hits {
		chunk, ok := r.meta.Lookup(hit.Row)
		if !ok {
			return nil, fmt.Errorf("index row %d has no metadata entry", hit.Row)
		}
		if targetYear != 0 && !r.yearMatches(chunk.Year, targetYear) {
			continue
		}
		results = append(results, models.ScoredChunk{
			Chunk:    chunk,
			Distance: hit.Distance,
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

func (r *Retriever) yearMatches(year, target int) bool {
	if year == 0 {
		return false
	}
	diff := year - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= r.config.YearTolerance
}
