// Package engine assembles the pipeline from configuration: service clients,
// the vector index backend, metadata, retriever, answerer and orchestrator.
// One Engine is built per process and handed to the CLI or the server.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/xhad/finsight/internal/types"
	"github.com/xhad/finsight/pkg/answerer"
	"github.com/xhad/finsight/pkg/chunker"
	"github.com/xhad/finsight/pkg/config"
	"github.com/xhad/finsight/pkg/index"
	"github.com/xhad/finsight/pkg/ingest"
	"github.com/xhad/finsight/pkg/llm"
	"github.com/xhad/finsight/pkg/orchestrator"
	"github.com/xhad/finsight/pkg/retriever"
	"github.com/xhad/finsight/pkg/store"
)

// Engine holds every constructed component plus the loaded corpus.
type Engine struct {
	Config       *config.Config
	Chat         *llm.ChatEngine
	Embedder     *llm.Embedder
	Index        types.VectorIndex
	Meta         index.Metadata
	Retriever    *retriever.Retriever
	Answerer     *answerer.Answerer
	Orchestrator *orchestrator.Orchestrator

	pg *store.VectorStore // set only for the pgvector backend
}

// Open builds an Engine over an existing corpus. The index and metadata must
// already exist and agree on row count; a missing or mismatched corpus is a
// startup failure, not something to limp past.
func Open(cfg *config.Config, onStage func(orchestrator.Stage, string)) (*Engine, error) {
	e, err := newServices(cfg)
	if err != nil {
		return nil, err
	}

	meta, err := index.LoadMetadata(cfg.Index.MetaPath)
	if err != nil {
		return nil, fmt.Errorf("metadata not available (run ingestion first): %w", err)
	}
	e.Meta = meta

	switch cfg.Index.Backend {
	case "pgvector":
		pg, err := store.NewWithConfig(store.VectorStoreConfig{
			ConnString: cfg.Index.DatabaseURL,
			TableName:  cfg.Index.TableName,
			VectorDim:  cfg.Index.VectorDim,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		e.pg = pg
		e.Index = pg
	default:
		ix, err := index.LoadFlatIndex(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("index not available (run ingestion first): %w", err)
		}
		e.Index = ix
	}

	if err := index.ValidateParity(e.Index.Len(), e.Meta); err != nil {
		e.Close()
		return nil, fmt.Errorf("corpus is inconsistent, re-run ingestion: %w", err)
	}

	e.wirePipeline(onStage)
	return e, nil
}

// Ingest rebuilds the corpus from the documents under dir and persists it.
// The previous index and metadata are replaced wholesale.
func Ingest(ctx context.Context, cfg *config.Config, dir string, builderCfg ingest.BuilderConfig) (ingest.Stats, error) {
	e, err := newServices(cfg)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer e.Close()

	builderCfg.VectorDim = cfg.Index.VectorDim
	if builderCfg.BatchSize == 0 {
		builderCfg.BatchSize = cfg.Index.BatchSize
	}
	if builderCfg.RateLimit == 0 {
		builderCfg.RateLimit = cfg.Index.RateLimit
	}

	ch := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
	})
	builder, err := ingest.NewBuilder(builderCfg, ch, e.Embedder)
	if err != nil {
		return ingest.Stats{}, err
	}

	var ix types.VectorIndex
	switch cfg.Index.Backend {
	case "pgvector":
		pg, err := store.NewWithConfig(store.VectorStoreConfig{
			ConnString: cfg.Index.DatabaseURL,
			TableName:  cfg.Index.TableName,
			VectorDim:  cfg.Index.VectorDim,
		})
		if err != nil {
			return ingest.Stats{}, fmt.Errorf("failed to open vector store: %w", err)
		}
		defer pg.Close()
		if err := pg.Reset(); err != nil {
			return ingest.Stats{}, err
		}
		ix = pg
	default:
		flat, err := index.NewFlatIndex(cfg.Index.VectorDim)
		if err != nil {
			return ingest.Stats{}, err
		}
		ix = flat
	}

	meta, stats, err := builder.Build(ctx, dir, ix)
	if err != nil {
		return stats, err
	}

	if flat, ok := ix.(*index.FlatIndex); ok {
		if err := flat.Save(cfg.Index.Path); err != nil {
			return stats, fmt.Errorf("failed to save index: %w", err)
		}
	}
	if err := meta.Save(cfg.Index.MetaPath); err != nil {
		return stats, fmt.Errorf("failed to save metadata: %w", err)
	}

	return stats, nil
}

// CorpusExists reports whether a previous ingestion left a loadable corpus
// for the configured backend.
func CorpusExists(cfg *config.Config) bool {
	if _, err := os.Stat(cfg.Index.MetaPath); err != nil {
		return false
	}
	if cfg.Index.Backend == "pgvector" {
		return true // the table is checked on connect
	}
	_, err := os.Stat(cfg.Index.Path)
	return err == nil
}

func (e *Engine) Close() {
	if e.pg != nil {
		e.pg.Close()
	}
}

func newServices(cfg *config.Config) (*Engine, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", errs[0].Error())
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:     cfg.LLM.ChatModel,
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbedModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Engine{
		Config:   cfg,
		Chat:     chat,
		Embedder: embedder,
	}, nil
}

func (e *Engine) wirePipeline(onStage func(orchestrator.Stage, string)) {
	cfg := e.Config

	tolerance := 1
	if cfg.Retrieval.YearTolerance != nil {
		tolerance = *cfg.Retrieval.YearTolerance
	}
	e.Retriever = retriever.NewWithConfig(retriever.RetrieverConfig{
		TopK:          cfg.Retrieval.TopK,
		Overfetch:     cfg.Retrieval.Overfetch,
		YearTolerance: tolerance,
	}, e.Embedder, e.Index, e.Meta)

	e.Answerer = answerer.NewWithConfig(answerer.AnswererConfig{
		TopK:            cfg.Retrieval.TopK,
		MaxAlternatives: cfg.Pipeline.MaxAlternatives,
	}, e.Retriever, e.Chat)

	e.Orchestrator = orchestrator.NewWithConfig(orchestrator.OrchestratorConfig{
		MaxFollowUps:    cfg.Pipeline.MaxFollowUps,
		GapChunks:       cfg.Pipeline.GapChunks,
		GapExcerptChars: cfg.Pipeline.GapExcerptChars,
		OnStage:         onStage,
	}, e.Answerer, e.Chat)
}
