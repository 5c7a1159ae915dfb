// Package ingest builds the searchable corpus: extract each document, chunk
// it, embed the chunks in batches and fill the vector index while assigning
// sequential chunk ids. The index and metadata are rebuilt wholesale on
// every run; there is no incremental update.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/time/rate"

	"github.com/xhad/finsight/internal/models"
	"github.com/xhad/finsight/internal/runes"
	"github.com/xhad/finsight/internal/types"
	"github.com/xhad/finsight/pkg/chunker"
	"github.com/xhad/finsight/pkg/extract"
	"github.com/xhad/finsight/pkg/index"
)

// MaxStoredChars bounds how much chunk text is persisted in metadata.
const MaxStoredChars = 4000

type BuilderConfig struct {
	VectorDim int
	BatchSize int
	RateLimit float64 // embedding batches per second

	// Progress callbacks for the CLI; either may be nil.
	OnDocument func(name string, chunks int)
	OnBatch    func(done, total int)
}

// Builder turns a directory of documents into index rows plus metadata.
type Builder struct {
	config   BuilderConfig
	chunker  chunker.Chunker
	embedder types.Embedder
	limiter  *rate.Limiter
}

type Stats struct {
	Documents     int
	Skipped       int
	Chunks        int
	FailedBatches int
}

func NewBuilder(config BuilderConfig, ch chunker.Chunker, embedder types.Embedder) (*Builder, error) {
	if config.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2.0
	}

	return &Builder{
		config:   config,
		chunker:  ch,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Build ingests every supported file under dir into ix and returns the
// metadata keyed by decimal chunk id. Documents that fail extraction are
// logged and skipped; a failed embedding batch is replaced by zero vectors
// so row/metadata parity always holds. Build fails only when the corpus
// yields no chunks at all.
func (b *Builder) Build(ctx context.Context, dir string, ix types.VectorIndex) (index.Metadata, Stats, error) {
	var stats Stats

	docs, err := b.loadDocuments(dir, &stats)
	if err != nil {
		return nil, stats, err
	}

	meta := make(index.Metadata)
	var texts []string
	id := 0

	for _, doc := range docs {
		chunks := b.chunker.Chunk(doc.Text)
		for i, text := range chunks {
			stored := runes.Truncate(text, MaxStoredChars)
			meta[fmt.Sprintf("%d", id)] = index.ChunkMeta{
				Source:     doc.Name,
				ChunkIndex: i,
				Text:       stored,
				Year:       doc.Year,
			}
			texts = append(texts, text)
			id++
		}
		if b.config.OnDocument != nil {
			b.config.OnDocument(doc.Name, len(chunks))
		}
	}

	if len(texts) == 0 {
		return nil, stats, fmt.Errorf("no chunks extracted from any document in %s", dir)
	}
	stats.Chunks = len(texts)

	if err := b.embedInto(ctx, texts, ix, &stats); err != nil {
		return nil, stats, err
	}

	if err := index.ValidateParity(ix.Len(), meta); err != nil {
		return nil, stats, fmt.Errorf("index/metadata parity broken after build: %w", err)
	}

	return meta, stats, nil
}

// loadDocuments scans dir for supported files, sorted by name so chunk ids
// are stable across runs on the same corpus.
func (b *Builder) loadDocuments(dir string, stats *Stats) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := extract.ForPath(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no supported documents found in %s", dir)
	}

	var docs []models.Document
	for _, name := range names {
		extractor, _ := extract.ForPath(name)
		text, err := extractor.Extract(filepath.Join(dir, name))
		if err != nil {
			log.Printf("skipping %s: %v", name, err)
			stats.Skipped++
			continue
		}
		docs = append(docs, models.Document{
			Name: name,
			Year: extract.YearFromFilename(name),
			Text: text,
		})
		stats.Documents++
	}

	return docs, nil
}

// embedInto embeds texts batch by batch and appends the vectors to ix. A
// failing batch degrades to zero vectors: those rows stay unretrievable by
// meaningful similarity but keep row ids dense.
func (b *Builder) embedInto(ctx context.Context, texts []string, ix types.VectorIndex, stats *Stats) error {
	total := (len(texts) + b.config.BatchSize - 1) / b.config.BatchSize

	for i := 0; i < len(texts); i += b.config.BatchSize {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ingestion cancelled: %w", err)
		}

		end := i + b.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := b.embedder.CreateEmbedding(ctx, batch)
		if err != nil {
			log.Printf("embedding batch %d/%d failed, substituting zero vectors: %v",
				i/b.config.BatchSize+1, total, err)
			stats.FailedBatches++
			vectors = make([][]float32, len(batch))
			for j := range vectors {
				vectors[j] = make([]float32, b.config.VectorDim)
			}
		}

		if err := ix.Add(vectors); err != nil {
			return fmt.Errorf("failed to add batch to index: %w", err)
		}

		if b.config.OnBatch != nil {
			b.config.OnBatch(i/b.config.BatchSize+1, total)
		}
	}

	// Every batch failing means the whole corpus is unsearchable.
	if stats.FailedBatches == total {
		return fmt.Errorf("all %d embedding batches failed", total)
	}

	return nil
}
