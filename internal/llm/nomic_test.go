package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/ragchat/internal/rag"
)

func nomicServer(t *testing.T, dim int, gotReq *nomicRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer nk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(gotReq))

		resp := nomicResponse{}
		for range gotReq.Texts {
			resp.Embeddings = append(resp.Embeddings, make([]float32, dim))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestNomicEmbedDocuments(t *testing.T) {
	var req nomicRequest
	srv := nomicServer(t, 768, &req)
	defer srv.Close()

	c := NewNomicClient("nk-test", "", 768).WithEndpoint(srv.URL, srv.Client())

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.Len(t, v, c.Dimensions())
	}

	assert.Equal(t, "search_document", req.TaskType)
	assert.Equal(t, 768, req.Dimensionality)
	assert.Equal(t, 8192, req.MaxTokensPerText)
	assert.Equal(t, nomicDefaultModel, req.Model)
}

func TestNomicEmbedQuery(t *testing.T) {
	var req nomicRequest
	srv := nomicServer(t, 768, &req)
	defer srv.Close()

	c := NewNomicClient("nk-test", "", 768).WithEndpoint(srv.URL, srv.Client())

	v, err := c.EmbedQuery(context.Background(), "what is a stock?")
	require.NoError(t, err)
	assert.Len(t, v, 768)
	assert.Equal(t, "search_query", req.TaskType)
	assert.Equal(t, []string{"what is a stock?"}, req.Texts)
}

func TestNomicDimensionMismatch(t *testing.T) {
	var req nomicRequest
	srv := nomicServer(t, 512, &req)
	defer srv.Close()

	c := NewNomicClient("nk-test", "", 768).WithEndpoint(srv.URL, srv.Client())

	_, err := c.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestNomicHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewNomicClient("bad", "", 768).WithEndpoint(srv.URL, srv.Client())

	_, err := c.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status 401")
	assert.ErrorContains(t, err, "invalid token")
}
