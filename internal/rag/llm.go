package rag

import "context"

type EmbeddingsClient interface {
	// EmbedDocuments embeds texts for storage, one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type ChatClient interface {
	StreamChat(ctx context.Context, messages []Message) (ChatStream, error)
}

// ChatStream yields response fragments until Recv returns io.EOF.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type Splitter interface {
	SplitText(text string) ([]string, error)
}
