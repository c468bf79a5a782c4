package rag

import (
	"context"
	"errors"
	"io"
	"sync"
)

type fakeEmbeddings struct {
	Dim              int
	EmbedDocumentsFn func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueryFn     func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.EmbedDocumentsFn != nil {
		return f.EmbedDocumentsFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.Dimensions())
	}
	return out, nil
}

func (f *fakeEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.EmbedQueryFn != nil {
		return f.EmbedQueryFn(ctx, text)
	}
	return make([]float32, f.Dimensions()), nil
}

func (f *fakeEmbeddings) Dimensions() int {
	if f.Dim == 0 {
		return 4
	}
	return f.Dim
}

type fakeRepository struct {
	mu                 sync.Mutex
	Records            map[string]Record
	EnsureCollectionFn func(ctx context.Context, spec CollectionSpec) error
	UpsertFn           func(ctx context.Context, rec *Record) error
	SearchFn           func(ctx context.Context, vector []float32, limit int) ([]Record, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{Records: make(map[string]Record)}
}

func (f *fakeRepository) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if f.EnsureCollectionFn != nil {
		return f.EnsureCollectionFn(ctx, spec)
	}
	return nil
}

func (f *fakeRepository) Upsert(ctx context.Context, rec *Record) error {
	if f.UpsertFn != nil {
		if err := f.UpsertFn(ctx, rec); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records[rec.ID] = *rec
	return nil
}

func (f *fakeRepository) Search(ctx context.Context, vector []float32, limit int) ([]Record, error) {
	if f.SearchFn != nil {
		return f.SearchFn(ctx, vector, limit)
	}
	return nil, nil
}

func (f *fakeRepository) Close() error { return nil }

func (f *fakeRepository) sources() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, r := range f.Records {
		out[r.Source]++
	}
	return out
}

// fakeChat records the conversation it was given and replays Tokens.
type fakeChat struct {
	Tokens       []string
	Err          error
	LastMessages []Message
}

func (f *fakeChat) StreamChat(_ context.Context, messages []Message) (ChatStream, error) {
	f.LastMessages = append([]Message(nil), messages...)
	if f.Err != nil {
		return nil, f.Err
	}
	return &sliceStream{tokens: f.Tokens}, nil
}

type sliceStream struct {
	tokens []string
	pos    int
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if s.closed {
		return "", errors.New("stream closed")
	}
	if s.pos >= len(s.tokens) {
		return "", io.EOF
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeScraper struct {
	Pages map[string]string
	Fail  map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (string, error) {
	if err, ok := f.Fail[url]; ok {
		return "", err
	}
	return f.Pages[url], nil
}

// wordSplitter splits on spaces; good enough to drive the pipeline.
type wordSplitter struct{}

func (wordSplitter) SplitText(text string) ([]string, error) {
	var out []string
	word := ""
	for _, r := range text {
		if r == ' ' {
			if word != "" {
				out = append(out, word)
			}
			word = ""
			continue
		}
		word += string(r)
	}
	if word != "" {
		out = append(out, word)
	}
	return out, nil
}

func drain(t interface{ Fatalf(string, ...any) }, s ChatStream) string {
	var out string
	for {
		tok, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		out += tok
	}
}
