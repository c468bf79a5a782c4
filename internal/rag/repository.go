package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Repository is the vector store holding every Record of one collection.
type Repository interface {
	// EnsureCollection creates the collection, or verifies an existing one has the same spec.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert inserts the record, replacing any record with the same ID.
	Upsert(ctx context.Context, rec *Record) error
	// Search returns up to limit records, most similar first.
	Search(ctx context.Context, vector []float32, limit int) ([]Record, error)
	Close() error
}

// PgRepository stores a collection as a pgvector table. Collection specs live in
// <schema>.vector_collection so a conflicting re-creation can be detected.
type PgRepository struct {
	db         *pgxpool.Pool
	schema     string
	collection string

	mu   sync.Mutex
	spec *CollectionSpec
}

func NewPgRepository(db *pgxpool.Pool, schema, collection string) *PgRepository {
	return &PgRepository{db: db, schema: schema, collection: collection}
}

func (r *PgRepository) table() string {
	return pgx.Identifier{r.schema, r.collection}.Sanitize()
}

func (r *PgRepository) catalog() string {
	return pgx.Identifier{r.schema, "vector_collection"}.Sanitize()
}

func (r *PgRepository) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if _, err := distanceOperator(spec.Metric); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if _, err := r.db.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{r.schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.catalog()+` (
			name       TEXT PRIMARY KEY,
			dimension  INT NOT NULL,
			metric     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create collection catalog: %w", err)
	}

	// Registration and table creation commit together, so a failed CREATE TABLE
	// leaves no catalog row behind.
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin collection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := r.loadSpec(ctx, tx)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO `+r.catalog()+` (name, dimension, metric) VALUES ($1, $2, $3)
		`, r.collection, spec.Dimension, string(spec.Metric))
		if err != nil {
			return fmt.Errorf("register collection: %w", err)
		}
	case err != nil:
		return err
	case *existing != spec:
		return fmt.Errorf("%w: %s has dimension=%d metric=%s", ErrCollectionConflict,
			r.collection, existing.Dimension, existing.Metric)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY,
			text       TEXT NOT NULL,
			source     TEXT NOT NULL,
			lang       TEXT NOT NULL DEFAULT '',
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, r.table(), spec.Dimension))
	if err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit collection: %w", err)
	}

	r.mu.Lock()
	r.spec = &spec
	r.mu.Unlock()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PgRepository) loadSpec(ctx context.Context, q querier) (*CollectionSpec, error) {
	var (
		spec   CollectionSpec
		metric string
	)
	err := q.QueryRow(ctx, `
		SELECT dimension, metric FROM `+r.catalog()+` WHERE name = $1
	`, r.collection).Scan(&spec.Dimension, &metric)
	if err != nil {
		return nil, err
	}
	spec.Metric = Metric(metric)
	return &spec, nil
}

func (r *PgRepository) currentSpec(ctx context.Context) (*CollectionSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spec != nil {
		return r.spec, nil
	}
	spec, err := r.loadSpec(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", r.collection, err)
	}
	r.spec = spec
	return spec, nil
}

func (r *PgRepository) Upsert(ctx context.Context, rec *Record) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO `+r.table()+` (id, text, source, lang, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			source = EXCLUDED.source,
			lang = EXCLUDED.lang,
			embedding = EXCLUDED.embedding,
			created_at = now()
	`,
		rec.ID,
		rec.Text,
		rec.Source,
		rec.Lang,
		pgvector.NewVector(rec.Vector),
	)
	return err
}

// Search ranks by the collection's metric: <#> is negative inner product, <=> cosine
// distance, <-> L2 distance. Lower sorts first for all three.
func (r *PgRepository) Search(ctx context.Context, vector []float32, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	spec, err := r.currentSpec(ctx)
	if err != nil {
		return nil, err
	}

	op, err := distanceOperator(spec.Metric)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id::text, text, source, lang, created_at, embedding `+op+` $1 AS distance
		FROM `+r.table()+`
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			distance float64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Text,
			&rec.Source,
			&rec.Lang,
			&rec.CreatedAt,
			&distance,
		); err != nil {
			return nil, err
		}
		rec.Score = scoreFromDistance(spec.Metric, distance)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *PgRepository) Close() error {
	r.db.Close()
	return nil
}

func distanceOperator(m Metric) (string, error) {
	switch m {
	case MetricDotProduct:
		return "<#>", nil
	case MetricCosine:
		return "<=>", nil
	case MetricEuclidean:
		return "<->", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, m)
	}
}

func scoreFromDistance(m Metric, d float64) float32 {
	switch m {
	case MetricDotProduct:
		return float32(-d)
	case MetricCosine:
		return float32(1 - d)
	default:
		return float32(-d)
	}
}

var _ Repository = (*PgRepository)(nil)
