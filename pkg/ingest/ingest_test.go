package ingest_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/finsight/pkg/chunker"
	"github.com/xhad/finsight/pkg/index"
	"github.com/xhad/finsight/pkg/ingest"
)

// fakeEmbedder returns deterministic vectors, failing on selected batches.
type fakeEmbedder struct {
	dim         int
	calls       int
	failBatches map[int]bool
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failBatches[f.calls] {
		return nil, fmt.Errorf("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func newBuilder(t *testing.T, emb *fakeEmbedder, batchSize int) *ingest.Builder {
	t.Helper()
	b, err := ingest.NewBuilder(ingest.BuilderConfig{
		VectorDim: emb.dim,
		BatchSize: batchSize,
		RateLimit: 1000, // keep tests fast
	}, chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 60, ChunkOverlap: 10}), emb)
	require.NoError(t, err)
	return b
}

func TestBuildProducesParityAndYears(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"report_2022.txt": "Total Revenue was $120M in 2022.\n\nNet Income was $15M in 2022.",
		"report_2021.txt": "Total Revenue was $107M in 2021.",
		"notes.txt":       "General commentary without a year.",
	})

	emb := &fakeEmbedder{dim: 4}
	b := newBuilder(t, emb, 10)

	ix, err := index.NewFlatIndex(4)
	require.NoError(t, err)

	meta, stats, err := b.Build(context.Background(), dir, ix)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, stats.Chunks, ix.Len())
	assert.Len(t, meta, ix.Len())
	require.NoError(t, index.ValidateParity(ix.Len(), meta))

	// Files are ingested in name order, chunk ids sequential.
	chunk, ok := meta.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", chunk.Source)
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.Equal(t, 0, chunk.Year)

	sawYear := map[int]bool{}
	for i := 0; i < ix.Len(); i++ {
		c, ok := meta.Lookup(i)
		require.True(t, ok)
		sawYear[c.Year] = true
	}
	assert.True(t, sawYear[2021])
	assert.True(t, sawYear[2022])
}

func TestBuildFailedBatchSubstitutesZeroVectors(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a_2022.txt": "First paragraph about revenue growth in detail.\n\nSecond paragraph about operating margin results.",
	})

	emb := &fakeEmbedder{dim: 3, failBatches: map[int]bool{1: true}}
	b := newBuilder(t, emb, 1) // one chunk per batch so only batch 1 fails

	ix, err := index.NewFlatIndex(3)
	require.NoError(t, err)

	meta, stats, err := b.Build(context.Background(), dir, ix)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Equal(t, stats.Chunks, ix.Len())
	assert.Len(t, meta, ix.Len())

	// Row 0 is a zero vector: it is the farthest hit for any real query.
	hits, err := ix.Search([]float32{100, 0, 0}, ix.Len())
	require.NoError(t, err)
	assert.Equal(t, 0, hits[len(hits)-1].Row)
}

func TestBuildAllBatchesFailingIsFatal(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a_2022.txt": "Revenue was strong this year.",
	})

	emb := &fakeEmbedder{dim: 3, failBatches: map[int]bool{1: true, 2: true, 3: true, 4: true}}
	b := newBuilder(t, emb, 100)

	ix, err := index.NewFlatIndex(3)
	require.NoError(t, err)

	_, _, err = b.Build(context.Background(), dir, ix)
	assert.Error(t, err)
}

func TestBuildSkipsUnreadableDocuments(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"good_2022.txt": "Revenue was $120M.",
	})
	// A supported name that cannot be read: a dangling symlink.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.txt"), filepath.Join(dir, "bad_2021.txt")))

	emb := &fakeEmbedder{dim: 3}
	b := newBuilder(t, emb, 10)

	ix, err := index.NewFlatIndex(3)
	require.NoError(t, err)

	meta, stats, err := b.Build(context.Background(), dir, ix)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Skipped)

	for key := range meta {
		row, err := strconv.Atoi(key)
		require.NoError(t, err)
		c, ok := meta.Lookup(row)
		require.True(t, ok)
		assert.Equal(t, "good_2022.txt", c.Source)
	}
}

func TestBuildEmptyCorpusIsFatal(t *testing.T) {
	dir := t.TempDir()

	emb := &fakeEmbedder{dim: 3}
	b := newBuilder(t, emb, 10)

	ix, err := index.NewFlatIndex(3)
	require.NoError(t, err)

	_, _, err = b.Build(context.Background(), dir, ix)
	assert.Error(t, err)
}

func TestBuildTruncatesStoredText(t *testing.T) {
	long := make([]byte, ingest.MaxStoredChars+500)
	for i := range long {
		long[i] = 'a'
	}
	dir := writeCorpus(t, map[string]string{"big_2022.txt": string(long)})

	emb := &fakeEmbedder{dim: 3}
	// Large chunk size so truncation, not chunking, bounds the text.
	b, err := ingest.NewBuilder(ingest.BuilderConfig{
		VectorDim: 3,
		BatchSize: 10,
		RateLimit: 1000,
	}, chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 10000, ChunkOverlap: 100}), emb)
	require.NoError(t, err)

	ix, iErr := index.NewFlatIndex(3)
	require.NoError(t, iErr)

	meta, _, err := b.Build(context.Background(), dir, ix)
	require.NoError(t, err)

	c, ok := meta.Lookup(0)
	require.True(t, ok)
	assert.LessOrEqual(t, len(c.Text), ingest.MaxStoredChars)
}

func TestBuildTruncationKeepsRuneBoundaries(t *testing.T) {
	// 4500 bytes of 3-byte runes: truncation to 4000 bytes lands inside a
	// rune unless the cut backs off to a boundary.
	dir := writeCorpus(t, map[string]string{
		"euro_2022.txt": strings.Repeat("€", 1500),
	})

	emb := &fakeEmbedder{dim: 3}
	b, err := ingest.NewBuilder(ingest.BuilderConfig{
		VectorDim: 3,
		BatchSize: 10,
		RateLimit: 1000,
	}, chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 10000, ChunkOverlap: 100}), emb)
	require.NoError(t, err)

	ix, iErr := index.NewFlatIndex(3)
	require.NoError(t, iErr)

	meta, _, err := b.Build(context.Background(), dir, ix)
	require.NoError(t, err)

	c, ok := meta.Lookup(0)
	require.True(t, ok)
	assert.LessOrEqual(t, len(c.Text), ingest.MaxStoredChars)
	assert.True(t, utf8.ValidString(c.Text), "stored text is not valid UTF-8")
}
