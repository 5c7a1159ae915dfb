package engine_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/finsight/pkg/config"
	"github.com/xhad/finsight/pkg/engine"
	"github.com/xhad/finsight/pkg/index"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Index.Path = filepath.Join(dir, "index.bin")
	cfg.Index.MetaPath = filepath.Join(dir, "meta.json")
	cfg.Index.VectorDim = 2
	return cfg
}

func writeCorpus(t *testing.T, cfg *config.Config, vectors [][]float32, meta index.Metadata) {
	t.Helper()
	ix, err := index.NewFlatIndex(cfg.Index.VectorDim)
	require.NoError(t, err)
	require.NoError(t, ix.Add(vectors))
	require.NoError(t, ix.Save(cfg.Index.Path))
	require.NoError(t, meta.Save(cfg.Index.MetaPath))
}

func TestOpenRequiresExistingCorpus(t *testing.T) {
	cfg := testConfig(t)

	assert.False(t, engine.CorpusExists(cfg))
	_, err := engine.Open(cfg, nil)
	assert.Error(t, err)
}

func TestOpenWiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg,
		[][]float32{{1, 0}, {0, 1}},
		index.Metadata{
			"0": {Source: "report_2022.txt", ChunkIndex: 0, Text: "Revenue was $5.2B.", Year: 2022},
			"1": {Source: "report_2022.txt", ChunkIndex: 1, Text: "Margin was 11%.", Year: 2022},
		},
	)

	assert.True(t, engine.CorpusExists(cfg))

	eng, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, 2, eng.Index.Len())
	assert.NotNil(t, eng.Retriever)
	assert.NotNil(t, eng.Answerer)
	assert.NotNil(t, eng.Orchestrator)
}

func TestOpenRejectsParityMismatch(t *testing.T) {
	cfg := testConfig(t)
	// Two vectors but only one metadata entry.
	writeCorpus(t, cfg,
		[][]float32{{1, 0}, {0, 1}},
		index.Metadata{
			"0": {Source: "report_2022.txt", ChunkIndex: 0, Text: "Revenue was $5.2B.", Year: 2022},
		},
	)

	_, err := engine.Open(cfg, nil)
	assert.Error(t, err)
}
