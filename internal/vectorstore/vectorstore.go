// Package vectorstore opens the rag.Repository selected by configuration.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/josinaldojr/ragchat/internal/config"
	"github.com/josinaldojr/ragchat/internal/db"
	"github.com/josinaldojr/ragchat/internal/rag"
	"github.com/josinaldojr/ragchat/internal/vectorstore/astra"
	"github.com/josinaldojr/ragchat/internal/vectorstore/chromemdb"
	"github.com/josinaldojr/ragchat/internal/vectorstore/sqlitevec"
)

// Open connects to the backend named by cfg.Backend. The collection itself is
// created later by EnsureCollection.
func Open(ctx context.Context, cfg config.VectorStoreConfig) (rag.Repository, error) {
	switch cfg.Backend {
	case "", "pgvector":
		pool, err := db.NewPool(ctx, cfg.Endpoint, cfg.Token)
		if err != nil {
			return nil, err
		}
		return rag.NewPgRepository(pool, cfg.Namespace, cfg.Collection), nil

	case "astra":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("astra: VECTOR_STORE_ENDPOINT is required")
		}
		return astra.New(cfg.Endpoint, cfg.Token, cfg.Namespace, cfg.Collection, nil), nil

	case "chromem":
		s, err := chromemdb.New(cfg.Endpoint, localName(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil

	case "sqlitevec":
		s, err := sqlitevec.Open(cfg.Endpoint, localName(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}

// Spec is the collection shape implied by configuration and the embedder.
func Spec(cfg config.VectorStoreConfig, dimension int) (rag.CollectionSpec, error) {
	metric, err := rag.ParseMetric(cfg.Metric)
	if err != nil {
		return rag.CollectionSpec{}, fmt.Errorf("VECTOR_METRIC %q: %w", cfg.Metric, err)
	}
	if dimension <= 0 {
		return rag.CollectionSpec{}, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	return rag.CollectionSpec{Dimension: dimension, Metric: metric}, nil
}

// Local backends have no keyspace, so the namespace prefixes the collection.
func localName(cfg config.VectorStoreConfig) string {
	if cfg.Namespace == "" {
		return cfg.Collection
	}
	return cfg.Namespace + "_" + cfg.Collection
}
