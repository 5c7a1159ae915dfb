// Package store provides the pgvector-backed vector index backend. It
// implements the same row-order addressed interface as the flat file index,
// so chunk metadata stays in the JSON store either way.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/finsight/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// VectorStore is a pgvector table addressed by dense 0-based row id.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	rows   int
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_l2_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	row := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName))
	if err := row.Scan(&vs.rows); err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}

	return nil
}

// Reset drops all rows so a fresh ingestion run can rebuild wholesale.
func (vs *VectorStore) Reset() error {
	ctx := context.Background()
	_, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", vs.config.TableName))
	if err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	vs.rows = 0
	return nil
}

// Add appends vectors with sequential row ids continuing from the current
// count, inside one transaction so a failure leaves the count unchanged.
func (vs *VectorStore) Add(vectors [][]float32) error {
	ctx := context.Background()

	for _, v := range vectors {
		if len(v) != vs.config.VectorDim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(v), vs.config.VectorDim)
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf("INSERT INTO %s (id, embedding) VALUES ($1, $2)", vs.config.TableName)

	for i, v := range vectors {
		if _, err := tx.Exec(ctx, stmt, vs.rows+i, pgvector.NewVector(v)); err != nil {
			return fmt.Errorf("failed to insert vector: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	vs.rows += len(vectors)
	return nil
}

// Search returns up to k rows ordered by ascending L2 distance.
func (vs *VectorStore) Search(query []float32, k int) ([]types.Hit, error) {
	ctx := context.Background()

	if len(query) != vs.config.VectorDim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), vs.config.VectorDim)
	}
	if k <= 0 {
		return nil, nil
	}

	stmt := fmt.Sprintf(`
		SELECT id, embedding <-> $1
		FROM %s
		ORDER BY embedding <-> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, stmt, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var hits []types.Hit
	for rows.Next() {
		var row int
		var distance float64
		if err := rows.Scan(&row, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, types.Hit{Row: row, Distance: float32(distance)})
	}

	return hits, rows.Err()
}

func (vs *VectorStore) Len() int {
	return vs.rows
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
