package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const defaultTopK = 10

type ServiceConfig struct {
	TopK  int
	Topic string
}

// Service answers chat requests with context retrieved from the Repository.
type Service struct {
	repo       Repository
	embeddings EmbeddingsClient
	llm        ChatClient
	cfg        ServiceConfig
	log        zerolog.Logger
}

func NewService(repo Repository, embeddings EmbeddingsClient, llm ChatClient, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Topic == "" {
		cfg.Topic = "finance and the stock market"
	}
	return &Service{
		repo:       repo,
		embeddings: embeddings,
		llm:        llm,
		cfg:        cfg,
		log:        log,
	}
}

// Chat starts a streamed answer to the latest user message in messages.
// Retrieval failures degrade to an empty context; every other failure is returned.
func (s *Service) Chat(ctx context.Context, messages []Message) (ChatStream, error) {
	question, err := latestUserMessage(messages)
	if err != nil {
		return nil, err
	}

	vec, err := s.embeddings.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	records := s.retrieve(ctx, vec)

	system := Message{
		Role:    RoleSystem,
		Content: BuildSystemPrompt(s.cfg.Topic, ContextBlob(records), question),
	}

	conversation := make([]Message, 0, len(messages)+1)
	conversation = append(conversation, system)
	conversation = append(conversation, messages...)

	stream, err := s.llm.StreamChat(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("start chat completion: %w", err)
	}
	return stream, nil
}

func (s *Service) retrieve(ctx context.Context, vec []float32) []Record {
	records, err := s.repo.Search(ctx, vec, s.cfg.TopK)
	if err != nil {
		s.log.Warn().Err(err).Msg("vector search failed, answering without context")
		return nil
	}
	s.log.Debug().Int("records", len(records)).Msg("retrieved context")
	return records
}

func latestUserMessage(messages []Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		if strings.TrimSpace(messages[i].Content) == "" {
			return "", ErrNoUserMessage
		}
		return messages[i].Content, nil
	}
	return "", ErrNoUserMessage
}
