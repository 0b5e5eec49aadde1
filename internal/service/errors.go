package service

import "errors"

var (
	errNotConfigured  = errors.New("collaborator not configured")
	errEmptyEmbedding = errors.New("empty embedding")

	// ErrEmbeddingUnavailable is returned by memory search when no embedder is configured or it fails.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)
