// Package splitter breaks scraped text into overlapping chunks for embedding.
package splitter

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/josinaldojr/ragchat/internal/rag"
)

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 100
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("chunk overlap must be >= 0 and smaller than chunk size")
)

// Window is a fixed sliding window over runes. Each chunk holds Size runes and
// starts Size-Overlap runes after the previous one; the final chunk may be shorter.
type Window struct {
	Size    int
	Overlap int
}

func NewWindow(size, overlap int) (*Window, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	return &Window{Size: size, Overlap: overlap}, nil
}

func (w *Window) SplitText(text string) ([]string, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= w.Size {
		return []string{text}, nil
	}

	step := w.Size - w.Overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+w.Size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Join reverses SplitText: it drops the overlapping prefix of every chunk after the first.
func Join(chunks []string, overlap int) string {
	var out []rune
	for i, c := range chunks {
		r := []rune(c)
		if i > 0 {
			r = r[min(overlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}

// NewRecursive returns langchaingo's recursive character splitter, which prefers
// paragraph, line and word boundaries over a fixed window.
func NewRecursive(size, overlap int) (rag.Splitter, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	), nil
}

// New picks a strategy by name: "window" (default) or "recursive".
func New(kind string, size, overlap int) (rag.Splitter, error) {
	switch kind {
	case "", "window":
		w, err := NewWindow(size, overlap)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "recursive":
		return NewRecursive(size, overlap)
	default:
		return nil, fmt.Errorf("unknown splitter %q", kind)
	}
}

var _ rag.Splitter = (*Window)(nil)
