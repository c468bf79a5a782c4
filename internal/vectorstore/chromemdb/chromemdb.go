// Package chromemdb implements rag.Repository on an embedded chromem-go database.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const compress = false

// Embeddings are always computed by the ingester or the query path, so the
// collection must never embed on its own.
var errNoEmbeddingFunc = errors.New("chromemdb: documents must carry precomputed embeddings")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Store keeps one chromem collection. An empty dbPath means in-memory.
type Store struct {
	db     *chromem.DB
	dbPath string
	name   string

	mu         sync.Mutex
	collection *chromem.Collection
	spec       *rag.CollectionSpec
}

func New(dbPath, collectionName string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}
	return &Store{db: db, dbPath: dbPath, name: collectionName}, nil
}

func (s *Store) specPath() string {
	return filepath.Join(s.dbPath, s.name+".spec.yaml")
}

// EnsureCollection only accepts cosine: chromem ranks by cosine similarity of
// normalized vectors.
func (s *Store) EnsureCollection(ctx context.Context, spec rag.CollectionSpec) error {
	if spec.Metric != rag.MetricCosine {
		return fmt.Errorf("%w: %s with chromem", rag.ErrUnsupportedMetric, spec.Metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSpec()
	if err != nil {
		return err
	}
	if existing != nil && *existing != spec {
		return fmt.Errorf("%w: %s has dimension=%d metric=%s", rag.ErrCollectionConflict,
			s.name, existing.Dimension, existing.Metric)
	}

	c, err := s.db.GetOrCreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	if existing == nil {
		if err := s.writeSpec(spec); err != nil {
			return err
		}
	}

	s.collection = c
	s.spec = &spec
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec *rag.Record) error {
	c, spec, err := s.current()
	if err != nil {
		return err
	}
	if len(rec.Vector) != spec.Dimension {
		return fmt.Errorf("%w: got %d, expected %d", rag.ErrDimensionMismatch, len(rec.Vector), spec.Dimension)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// AddDocument overwrites a document with the same ID.
	err = c.AddDocument(ctx, chromem.Document{
		ID:      rec.ID,
		Content: rec.Text,
		Metadata: map[string]string{
			"source":     rec.Source,
			"lang":       rec.Lang,
			"created_at": createdAt.Format(time.RFC3339Nano),
		},
		Embedding: rec.Vector,
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]rag.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	c, _, err := s.current()
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := c.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]rag.Record, 0, len(results))
	for _, r := range results {
		createdAt, _ := time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
		out = append(out, rag.Record{
			ID:        r.ID,
			Text:      r.Content,
			Source:    r.Metadata["source"],
			Lang:      r.Metadata["lang"],
			Score:     r.Similarity,
			CreatedAt: createdAt,
		})
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

// current opens the collection lazily so a query process can search a
// collection created by an earlier ingest run.
func (s *Store) current() (*chromem.Collection, rag.CollectionSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		return s.collection, *s.spec, nil
	}

	spec, err := s.readSpec()
	if err != nil {
		return nil, rag.CollectionSpec{}, err
	}
	if spec == nil {
		return nil, rag.CollectionSpec{}, fmt.Errorf("collection %s does not exist", s.name)
	}
	c := s.db.GetCollection(s.name, noEmbedding)
	if c == nil {
		return nil, rag.CollectionSpec{}, fmt.Errorf("collection %s does not exist", s.name)
	}

	s.collection = c
	s.spec = spec
	return c, *spec, nil
}

func (s *Store) readSpec() (*rag.CollectionSpec, error) {
	if s.dbPath == "" {
		return s.spec, nil
	}
	raw, err := os.ReadFile(s.specPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection spec: %w", err)
	}
	var spec rag.CollectionSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decode collection spec: %w", err)
	}
	return &spec, nil
}

func (s *Store) writeSpec(spec rag.CollectionSpec) error {
	if s.dbPath == "" {
		return nil
	}
	raw, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dbPath, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.specPath(), raw, 0o644); err != nil {
		return fmt.Errorf("write collection spec: %w", err)
	}
	return nil
}

var _ rag.Repository = (*Store)(nil)
