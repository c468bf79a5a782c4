// Package astra implements rag.Repository on the Astra DB Data API (JSON over HTTP).
package astra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const apiPath = "/api/json/v1"

// Store is bound to one keyspace and collection.
type Store struct {
	endpoint   string
	token      string
	keyspace   string
	collection string
	httpClient *http.Client
}

func New(endpoint, token, keyspace, collection string, httpClient *http.Client) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Store{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		keyspace:   keyspace,
		collection: collection,
		httpClient: httpClient,
	}
}

type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

type apiResponse struct {
	Status json.RawMessage `json:"status"`
	Data   struct {
		Documents []document `json:"documents"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

type document struct {
	ID         string    `json:"_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Vector     []float32 `json:"$vector,omitempty"`
	Similarity float32   `json:"$similarity,omitempty"`
}

type collectionOptions struct {
	Vector struct {
		Dimension int    `json:"dimension"`
		Metric    string `json:"metric"`
	} `json:"vector"`
}

func (s *Store) EnsureCollection(ctx context.Context, spec rag.CollectionSpec) error {
	var opts collectionOptions
	opts.Vector.Dimension = spec.Dimension
	opts.Vector.Metric = string(spec.Metric)

	cmd := map[string]any{
		"createCollection": map[string]any{
			"name":    s.collection,
			"options": opts,
		},
	}

	_, err := s.do(ctx, s.keyspaceURL(), cmd)
	if err != nil {
		var ae *Error
		if asError(err, &ae) && ae.isExistingCollection() {
			return fmt.Errorf("%w: %s", rag.ErrCollectionConflict, ae.Message)
		}
		return fmt.Errorf("astra createCollection: %w", err)
	}
	return nil
}

// Upsert replaces the document with the same _id, inserting it when absent.
func (s *Store) Upsert(ctx context.Context, rec *rag.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	cmd := map[string]any{
		"findOneAndReplace": map[string]any{
			"filter": map[string]any{"_id": rec.ID},
			"replacement": document{
				ID:        rec.ID,
				Text:      rec.Text,
				Source:    rec.Source,
				Lang:      rec.Lang,
				CreatedAt: createdAt,
				Vector:    rec.Vector,
			},
			"options": map[string]any{"upsert": true},
		},
	}

	if _, err := s.do(ctx, s.collectionURL(), cmd); err != nil {
		return fmt.Errorf("astra upsert: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]rag.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	cmd := map[string]any{
		"find": map[string]any{
			"sort":       map[string]any{"$vector": vector},
			"projection": map[string]any{"$vector": 0},
			"options": map[string]any{
				"limit":             limit,
				"includeSimilarity": true,
			},
		},
	}

	resp, err := s.do(ctx, s.collectionURL(), cmd)
	if err != nil {
		return nil, fmt.Errorf("astra find: %w", err)
	}

	records := make([]rag.Record, 0, len(resp.Data.Documents))
	for _, d := range resp.Data.Documents {
		records = append(records, rag.Record{
			ID:        d.ID,
			Text:      d.Text,
			Source:    d.Source,
			Lang:      d.Lang,
			Score:     d.Similarity,
			CreatedAt: d.CreatedAt,
		})
	}
	return records, nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) keyspaceURL() string {
	return s.endpoint + apiPath + "/" + s.keyspace
}

func (s *Store) collectionURL() string {
	return s.keyspaceURL() + "/" + s.collection
}

func (s *Store) do(ctx context.Context, url string, cmd any) (*apiResponse, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Token", s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, &Error{Code: out.Errors[0].ErrorCode, Message: out.Errors[0].Message}
	}
	return &out, nil
}

var _ rag.Repository = (*Store)(nil)
