package rag

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Metric is the similarity function fixed when a collection is created.
type Metric string

const (
	MetricDotProduct Metric = "dot_product"
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
)

// ParseMetric validates a metric name coming from configuration.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricDotProduct, MetricCosine, MetricEuclidean:
		return m, nil
	default:
		return "", ErrUnsupportedMetric
	}
}

// CollectionSpec describes the vector field of a collection.
type CollectionSpec struct {
	Dimension int    `json:"dimension" yaml:"dimension"`
	Metric    Metric `json:"metric" yaml:"metric"`
}

// Record
// One chunk of scraped text plus its embedding, as persisted in the vector store.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Lang      string    `json:"lang,omitempty"`
	Vector    []float32 `json:"-"`
	Score     float32   `json:"score,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRequest
// Payload of POST /api/chat.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// IngestReport summarises an ingestion run.
type IngestReport struct {
	URLs         int      `json:"urls"`
	FailedURLs   []string `json:"failedUrls"`
	Chunks       int      `json:"chunks"`
	Inserted     int      `json:"inserted"`
	FailedChunks int      `json:"failedChunks"`
}
