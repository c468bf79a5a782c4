// Package llm adapts embedding and chat-completion providers to the rag interfaces.
package llm

import (
	"context"
	"fmt"

	"github.com/josinaldojr/ragchat/internal/config"
	"github.com/josinaldojr/ragchat/internal/rag"
)

// NewEmbeddings builds the embedding client named by cfg.Provider.
func NewEmbeddings(ctx context.Context, cfg config.EmbeddingConfig) (rag.EmbeddingsClient, error) {
	switch cfg.Provider {
	case "", "nomic":
		return NewNomicClient(cfg.NomicToken, cfg.Model, cfg.Dimension), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.OpenAIURL,
			EmbeddingModel: cfg.Model,
			Dimensions:     cfg.Dimension,
		}), nil
	case "gemini":
		g, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.GeminiKey,
			EmbeddingModel: cfg.Model,
			Dimensions:     cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewChat builds the chat-completion client named by cfg.Provider.
func NewChat(ctx context.Context, cfg config.ChatConfig) (rag.ChatClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIURL,
			ChatModel: cfg.Model,
		}), nil
	case "gemini":
		g, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:    cfg.GeminiKey,
			ChatModel: cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}
