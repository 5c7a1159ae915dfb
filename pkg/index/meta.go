package index

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/xhad/finsight/internal/models"
)

// ChunkMeta is the persisted form of one chunk, without its vector.
type ChunkMeta struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Year       int    `json:"year"`
}

// Metadata maps the decimal chunk id to its metadata. The key for vector
// row n is strconv.Itoa(n); ids are assigned sequentially at build time and
// never reused or reordered.
type Metadata map[string]ChunkMeta

// Lookup resolves a vector row to its chunk, or false when the row is not
// present.
func (m Metadata) Lookup(row int) (models.Chunk, bool) {
	meta, ok := m[strconv.Itoa(row)]
	if !ok {
		return models.Chunk{}, false
	}
	return models.Chunk{
		ID:         row,
		Source:     meta.Source,
		ChunkIndex: meta.ChunkIndex,
		Text:       meta.Text,
		Year:       meta.Year,
	}, true
}

// Save writes the metadata JSON to path.
func (m Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadMetadata reads a metadata file previously written by Save.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	return m, nil
}

// ValidateParity checks the row-order invariant between an index and its
// metadata: equal counts, and every row 0..n-1 resolvable by its decimal id.
func ValidateParity(rows int, m Metadata) error {
	if rows != len(m) {
		return fmt.Errorf("index has %d rows but metadata has %d entries", rows, len(m))
	}
	for i := 0; i < rows; i++ {
		if _, ok := m[strconv.Itoa(i)]; !ok {
			return fmt.Errorf("metadata is missing entry for row %d", i)
		}
	}
	return nil
}
