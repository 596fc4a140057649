// Package index is the storage adapter for memory records: it turns records
// into flat index documents, generates their embeddings, and runs hybrid
// lexical+vector searches against a pluggable backend.
package index

import (
	"context"
	"errors"
)

// Sentinel errors returned by backends and the adapter.
var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Query is a single backend search request. Text drives the lexical side,
// Vector the semantic side; either may be empty, in which case the backend
// runs the other side alone.
type Query struct {
	Text          string
	Vector        []float32
	Filter        Filter
	Top           int
	KNNCandidates int
}

// Hit is one scored search result.
type Hit struct {
	Doc   *Document
	Score float64
}

// Backend is the persistence interface the adapter drives. Implementations
// exist for PostgreSQL (tsvector + pgvector) and embedded SQLite (FTS5 +
// in-process cosine).
type Backend interface {
	Upsert(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q Query) ([]Hit, error)
	Close() error
}
