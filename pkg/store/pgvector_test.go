package store_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/finsight/pkg/store"
)

// These tests need a PostgreSQL server with the pgvector extension; they are
// skipped unless TEST_DATABASE_URL is set.

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	conn := os.Getenv("TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: conn,
		TableName:  "test_chunks",
		VectorDim:  3,
	}
}

func TestVectorStoreAddSearch(t *testing.T) {
	s, err := store.NewWithConfig(getTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Reset())
	require.NoError(t, s.Add([][]float32{
		{0, 0, 0},
		{1, 0, 0},
		{0, 5, 0},
	}))
	assert.Equal(t, 3, s.Len())

	hits, err := s.Search([]float32{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Row)
	assert.Equal(t, 1, hits[1].Row)
}

func TestVectorStoreDimensionMismatch(t *testing.T) {
	s, err := store.NewWithConfig(getTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Add([][]float32{{1, 2}}))

	_, err = s.Search([]float32{1, 2}, 1)
	assert.Error(t, err)
}
