package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/ragchat/internal/rag"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vectors.db"), "chunks")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.EnsureCollection(ctx, rag.CollectionSpec{Dimension: 3, Metric: rag.MetricCosine}))

	docs := []rag.Record{
		{ID: "a", Text: "alpha", Source: "https://example.com/a", Vector: []float32{1, 0, 0}},
		{ID: "b", Text: "beta", Source: "https://example.com/b", Vector: []float32{0, 1, 0}},
		{ID: "c", Text: "gamma", Source: "https://example.com/c", Lang: "en", Vector: []float32{0.9, 0.1, 0}},
	}
	for i := range docs {
		require.NoError(t, s.Upsert(ctx, &docs[i]))
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, "en", got[1].Lang)
	assert.InDelta(t, 1.0, got[0].Score, 1e-4)
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.EnsureCollection(ctx, rag.CollectionSpec{Dimension: 2, Metric: rag.MetricEuclidean}))

	require.NoError(t, s.Upsert(ctx, &rag.Record{ID: "x", Text: "old", Source: "s", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, &rag.Record{ID: "x", Text: "new", Source: "s", Vector: []float32{0, 1}}))

	got, err := s.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)
}

func TestStoreEnsureCollection(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	spec := rag.CollectionSpec{Dimension: 4, Metric: rag.MetricCosine}

	require.NoError(t, s.EnsureCollection(ctx, spec))
	require.NoError(t, s.EnsureCollection(ctx, spec))

	err := s.EnsureCollection(ctx, rag.CollectionSpec{Dimension: 8, Metric: rag.MetricCosine})
	assert.ErrorIs(t, err, rag.ErrCollectionConflict)

	err = s.EnsureCollection(ctx, rag.CollectionSpec{Dimension: 4, Metric: rag.MetricDotProduct})
	assert.ErrorIs(t, err, rag.ErrUnsupportedMetric)
}

func TestStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.EnsureCollection(ctx, rag.CollectionSpec{Dimension: 3, Metric: rag.MetricCosine}))

	err := s.Upsert(ctx, &rag.Record{ID: "x", Text: "t", Source: "s", Vector: []float32{1, 2}})
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestOpenRejectsBadCollectionName(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "v.db"), "drop table;")
	assert.Error(t, err)
}
