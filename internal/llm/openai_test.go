package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/ragchat/internal/rag"
)

func TestOpenAIEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req openai.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 768, req.Dimensions)

		inputs, ok := req.Input.([]any)
		require.True(t, ok)

		resp := openai.EmbeddingResponse{Object: "list", Model: openai.SmallEmbedding3}
		// reversed on purpose: results are placed by Index
		for i := len(inputs) - 1; i >= 0; i-- {
			v := make([]float32, 768)
			v[0] = float32(i)
			resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Index: i, Embedding: v})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Dimensions: 768})

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 768)
		assert.Equal(t, float32(i), v[0])
	}
}

func TestOpenAIEmbeddingsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.EmbeddingResponse{Data: []openai.Embedding{{Index: 0, Embedding: make([]float32, 1536)}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Dimensions: 768})

	_, err := c.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestOpenAIEmbeddingsRejectsRepeatedIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.EmbeddingResponse{Data: []openai.Embedding{
			{Index: 0, Embedding: make([]float32, 4)},
			{Index: 0, Embedding: make([]float32, 4)},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Dimensions: 4})

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "index 0 twice")
	assert.Nil(t, vecs)
}

func TestOpenAIStreamChat(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		deltas := []string{"", "Stocks ", "are ", "shares."}
		for i, d := range deltas {
			chunk := openai.ChatCompletionStreamResponse{
				ID:    "chatcmpl-1",
				Model: openai.GPT4,
				Choices: []openai.ChatCompletionStreamChoice{{
					Index: 0,
					Delta: openai.ChatCompletionStreamChoiceDelta{Content: d},
				}},
			}
			if i == 0 {
				chunk.Choices[0].Delta.Role = openai.ChatMessageRoleAssistant
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	stream, err := c.StreamChat(context.Background(), []rag.Message{
		{Role: rag.RoleSystem, Content: "context"},
		{Role: rag.RoleUser, Content: "What is a stock?"},
	})
	require.NoError(t, err)
	defer stream.Close()

	var tokens []string
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	assert.Equal(t, []string{"Stocks ", "are ", "shares."}, tokens)
	assert.True(t, got.Stream)
	assert.Equal(t, openai.GPT4, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "What is a stock?", got.Messages[1].Content)
}

func TestOpenAIStreamChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := c.StreamChat(context.Background(), []rag.Message{{Role: rag.RoleUser, Content: "q"}})
	assert.ErrorContains(t, err, "openai chat error")
}
