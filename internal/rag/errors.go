package rag

import "errors"

var (
	// ErrCollectionConflict is returned when a collection already exists with a different spec.
	ErrCollectionConflict = errors.New("collection exists with different parameters")

	// ErrNoUserMessage is returned when a conversation has no user message to answer.
	ErrNoUserMessage = errors.New("conversation has no user message")

	// ErrDimensionMismatch is returned when an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrUnsupportedMetric = errors.New("unsupported similarity metric")
)
