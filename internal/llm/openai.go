package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const (
	openAIEmbeddingModel = "text-embedding-3-small"
	openAIChatModel      = openai.GPT4
)

// OpenAIClient serves both embeddings and streamed chat completions.
type OpenAIClient struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
	dimensions     int
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openAIEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openAIChatModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.Dimensions,
	}
}

func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(c.embeddingModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embedding index %d out of range", d.Index)
		}
		if out[d.Index] != nil {
			return nil, fmt.Errorf("openai returned embedding index %d twice", d.Index)
		}
		if err := checkDimension(d.Embedding, c.dimensions); err != nil {
			return nil, err
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for index %d", i)
		}
	}
	return out, nil
}

func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *OpenAIClient) StreamChat(ctx context.Context, messages []rag.Message) (rag.ChatStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Stream:   true,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat error: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

// Recv skips deltas without content (role headers, finish markers).
func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openai stream error: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

var (
	_ rag.EmbeddingsClient = (*OpenAIClient)(nil)
	_ rag.ChatClient       = (*OpenAIClient)(nil)
)
