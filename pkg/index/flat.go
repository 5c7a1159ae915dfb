// Package index provides the row-order addressed similarity index and the
// chunk metadata store that together hold the ingested corpus. Vector row n
// and metadata key "n" always refer to the same chunk.
package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/xhad/finsight/internal/types"
)

// FlatIndex is a brute-force L2 index over dense float32 rows. Search is
// exhaustive, which is exact and fast enough for a corpus of report chunks.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid vector dimension: %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Add appends vectors; row ids continue from the current length.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(v), ix.dim)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Search returns up to k rows ordered by ascending L2 distance.
func (ix *FlatIndex) Search(query []float32, k int) ([]types.Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]types.Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = types.Hit{Row: i, Distance: l2(query, v)}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Row < hits[b].Row
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (ix *FlatIndex) Len() int {
	return len(ix.vectors)
}

func (ix *FlatIndex) Dim() int {
	return ix.dim
}

type flatIndexFile struct {
	Dim     int
	Vectors [][]float32
}

// Save writes the index to path.
func (ix *FlatIndex) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(flatIndexFile{Dim: ix.dim, Vectors: ix.vectors}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// LoadFlatIndex reads an index previously written by Save.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var file flatIndexFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode index file: %w", err)
	}
	if file.Dim <= 0 {
		return nil, fmt.Errorf("index file has invalid dimension %d", file.Dim)
	}
	for i, v := range file.Vectors {
		if len(v) != file.Dim {
			return nil, fmt.Errorf("index row %d has dimension %d, want %d", i, len(v), file.Dim)
		}
	}

	return &FlatIndex{dim: file.Dim, vectors: file.Vectors}, nil
}

func l2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
