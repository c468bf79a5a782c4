package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/ragchat/internal/config"
	"github.com/josinaldojr/ragchat/internal/rag"
	"github.com/josinaldojr/ragchat/internal/vectorstore/astra"
	"github.com/josinaldojr/ragchat/internal/vectorstore/chromemdb"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, config.VectorStoreConfig{
		Backend: "astra", Endpoint: "https://db.example.com", Namespace: "ks", Collection: "c",
	})
	require.NoError(t, err)
	assert.IsType(t, &astra.Store{}, repo)

	repo, err = Open(ctx, config.VectorStoreConfig{
		Backend: "chromem", Endpoint: filepath.Join(t.TempDir(), "chromem"), Namespace: "ks", Collection: "c",
	})
	require.NoError(t, err)
	assert.IsType(t, &chromemdb.Store{}, repo)
	require.NoError(t, repo.Close())
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.VectorStoreConfig{Backend: "astra"})
	assert.Error(t, err)

	_, err = Open(ctx, config.VectorStoreConfig{Backend: "milvus"})
	assert.Error(t, err)
}

func TestSpec(t *testing.T) {
	spec, err := Spec(config.VectorStoreConfig{Metric: "cosine"}, 768)
	require.NoError(t, err)
	assert.Equal(t, rag.CollectionSpec{Dimension: 768, Metric: rag.MetricCosine}, spec)

	_, err = Spec(config.VectorStoreConfig{Metric: "manhattan"}, 768)
	assert.ErrorIs(t, err, rag.ErrUnsupportedMetric)

	_, err = Spec(config.VectorStoreConfig{Metric: "cosine"}, 0)
	assert.Error(t, err)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "ks_c", localName(config.VectorStoreConfig{Namespace: "ks", Collection: "c"}))
	assert.Equal(t, "c", localName(config.VectorStoreConfig{Collection: "c"}))
}
