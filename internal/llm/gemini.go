package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const (
	geminiEmbeddingModel = "models/text-embedding-004"
	geminiChatModel      = "gemini-2.5-flash"
)

type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	chatModel      string
	dimensions     int
}

type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	// BaseURL and HTTPClient are optional; empty means the public Gemini API.
	BaseURL    string
	HTTPClient *http.Client
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = geminiEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = geminiChatModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{
		client:         c,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.Dimensions,
	}, nil
}

func (g *GeminiClient) Dimensions() int {
	return g.dimensions
}

func (g *GeminiClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := g.embed(ctx, t, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, "RETRIEVAL_QUERY")
}

func (g *GeminiClient) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil, fmt.Errorf("empty text for embedding")
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.embeddingModel,
		genai.Text(clean),
		&genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: genai.Ptr(int32(g.dimensions)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed error: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	values := resp.Embeddings[0].Values
	if err := checkDimension(values, g.dimensions); err != nil {
		return nil, err
	}
	return values, nil
}

// StreamChat moves system messages into the system instruction and maps the
// assistant role to Gemini's "model" role.
func (g *GeminiClient) StreamChat(ctx context.Context, messages []rag.Message) (rag.ChatStream, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case rag.RoleSystem:
			system = append(system, m.Content)
		case rag.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini chat: %w", rag.ErrNoUserMessage)
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.Text(strings.Join(system, "\n\n"))[0]
	}

	seq := g.client.Models.GenerateContentStream(ctx, g.chatModel, contents, cfg)
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream error: %w", err)
		}
		if resp == nil {
			continue
		}
		if txt := resp.Text(); txt != "" {
			return txt, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	_ rag.EmbeddingsClient = (*GeminiClient)(nil)
	_ rag.ChatClient       = (*GeminiClient)(nil)
)
