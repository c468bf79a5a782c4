// Package sqlitevec implements rag.Repository on a local SQLite file with the
// sqlite-vec extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/josinaldojr/ragchat/internal/rag"
)

var vecAutoOnce sync.Once

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db         *sql.DB
	collection string

	mu   sync.Mutex
	spec *rag.CollectionSpec
}

// Open creates the database file (and its directory) when missing.
func Open(path, collection string) (*Store, error) {
	if !validName.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}

	vecAutoOnce.Do(func() {
		sqlite_vec.Auto()
	})

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("SELECT vec_version()"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vector_collection (
			name       TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL,
			metric     TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create collection catalog: %w", err)
	}

	return &Store{db: db, collection: collection}, nil
}

func (s *Store) docs() string    { return s.collection + "_docs" }
func (s *Store) vectors() string { return s.collection + "_vec" }

func (s *Store) EnsureCollection(ctx context.Context, spec rag.CollectionSpec) error {
	if _, err := distanceFunc(spec.Metric); err != nil {
		return err
	}

	existing, err := s.loadSpec(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO vector_collection (name, dimension, metric) VALUES (?, ?, ?)`,
			s.collection, spec.Dimension, string(spec.Metric))
		if err != nil {
			return fmt.Errorf("register collection: %w", err)
		}
	case err != nil:
		return err
	case *existing != spec:
		return fmt.Errorf("%w: %s has dimension=%d metric=%s", rag.ErrCollectionConflict,
			s.collection, existing.Dimension, existing.Metric)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.docs()+` (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			source     TEXT NOT NULL,
			lang       TEXT,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			doc_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, s.vectors(), spec.Dimension))
	if err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}

	s.mu.Lock()
	s.spec = &spec
	s.mu.Unlock()
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec *rag.Record) error {
	spec, err := s.collectionSpec(ctx)
	if err != nil {
		return err
	}
	if len(rec.Vector) != spec.Dimension {
		return fmt.Errorf("%w: got %d, expected %d", rag.ErrDimensionMismatch, len(rec.Vector), spec.Dimension)
	}

	blob, err := sqlite_vec.SerializeFloat32(rec.Vector)
	if err != nil {
		return fmt.Errorf("serialize vector: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+s.docs()+` (id, text, source, lang, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Text, rec.Source, rec.Lang, createdAt)
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", rec.ID, err)
	}

	// vec0 tables do not support INSERT OR REPLACE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.vectors()+` WHERE doc_id = ?`, rec.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO `+s.vectors()+` (doc_id, embedding) VALUES (?, ?)`, rec.ID, blob)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", rec.ID, err)
	}

	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]rag.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	spec, err := s.collectionSpec(ctx)
	if err != nil {
		return nil, err
	}
	fn, err := distanceFunc(spec.Metric)
	if err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize vector: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.text, d.source, d.lang, d.created_at, `+fn+`(v.embedding, ?) AS distance
		FROM `+s.vectors()+` v
		JOIN `+s.docs()+` d ON d.id = v.doc_id
		ORDER BY distance ASC
		LIMIT ?
	`, blob, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var out []rag.Record
	for rows.Next() {
		var (
			rec      rag.Record
			lang     sql.NullString
			distance float64
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Source, &lang, &rec.CreatedAt, &distance); err != nil {
			return nil, err
		}
		rec.Lang = lang.String
		rec.Score = scoreFromDistance(spec.Metric, distance)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) collectionSpec(ctx context.Context) (rag.CollectionSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec != nil {
		return *s.spec, nil
	}
	spec, err := s.loadSpec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return rag.CollectionSpec{}, fmt.Errorf("collection %s does not exist", s.collection)
	}
	if err != nil {
		return rag.CollectionSpec{}, err
	}
	s.spec = spec
	return *spec, nil
}

func (s *Store) loadSpec(ctx context.Context) (*rag.CollectionSpec, error) {
	var (
		spec   rag.CollectionSpec
		metric string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, metric FROM vector_collection WHERE name = ?`, s.collection,
	).Scan(&spec.Dimension, &metric)
	if err != nil {
		return nil, err
	}
	spec.Metric = rag.Metric(metric)
	return &spec, nil
}

// sqlite-vec has no inner-product distance.
func distanceFunc(m rag.Metric) (string, error) {
	switch m {
	case rag.MetricCosine:
		return "vec_distance_cosine", nil
	case rag.MetricEuclidean:
		return "vec_distance_l2", nil
	default:
		return "", fmt.Errorf("%w: %s with sqlitevec", rag.ErrUnsupportedMetric, m)
	}
}

func scoreFromDistance(m rag.Metric, d float64) float32 {
	if m == rag.MetricEuclidean {
		return float32(1 / (1 + d))
	}
	return float32(1 - d)
}

var _ rag.Repository = (*Store)(nil)
