package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const (
	nomicEndpoint     = "https://api-atlas.nomic.ai/v1/embedding/text"
	nomicDefaultModel = "nomic-embed-text-v1.5"
	nomicMaxTokens    = 8192
)

// NomicClient calls the Nomic Atlas text embedding API.
type NomicClient struct {
	endpoint   string
	token      string
	model      string
	dimensions int
	httpClient *http.Client
}

type nomicRequest struct {
	Model            string   `json:"model"`
	Texts            []string `json:"texts"`
	TaskType         string   `json:"task_type"`
	MaxTokensPerText int      `json:"max_tokens_per_text"`
	Dimensionality   int      `json:"dimensionality"`
}

type nomicResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewNomicClient(token, model string, dimensions int) *NomicClient {
	if model == "" {
		model = nomicDefaultModel
	}
	return &NomicClient{
		endpoint:   nomicEndpoint,
		token:      token,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithEndpoint points the client at another host, e.g. a test server.
func (c *NomicClient) WithEndpoint(endpoint string, httpClient *http.Client) *NomicClient {
	c.endpoint = endpoint
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

func (c *NomicClient) Dimensions() int {
	return c.dimensions
}

func (c *NomicClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "search_document")
}

func (c *NomicClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, "search_query")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *NomicClient) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(nomicRequest{
		Model:            c.model,
		Texts:            texts,
		TaskType:         taskType,
		MaxTokensPerText: nomicMaxTokens,
		Dimensionality:   c.dimensions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nomic embed error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("nomic embed error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out nomicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode nomic response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("nomic returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	for _, v := range out.Embeddings {
		if err := checkDimension(v, c.dimensions); err != nil {
			return nil, err
		}
	}
	return out.Embeddings, nil
}

func checkDimension(v []float32, want int) error {
	if len(v) != want {
		return fmt.Errorf("%w: got %d, expected %d", rag.ErrDimensionMismatch, len(v), want)
	}
	return nil
}

var _ rag.EmbeddingsClient = (*NomicClient)(nil)
