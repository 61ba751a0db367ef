package ports

import "context"

// PersonDocument is the searchable representation of one person.
type PersonDocument struct {
	PersonID      int64
	DirectoryName string
	Text          string
	Embedding     []float32
}

// PersonMatch is a similarity search hit.
type PersonMatch struct {
	PersonID int64
	Score    float32
}

// PersonIndex defines the interface for vector similarity search over persons.
type PersonIndex interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all indexed persons.
	DeleteCollection(ctx context.Context) error

	// Upsert stores or replaces documents keyed by person id.
	Upsert(ctx context.Context, docs []PersonDocument) error

	// Search returns the persons closest to the embedding, best first.
	Search(ctx context.Context, embedding []float32, limit int) ([]PersonMatch, error)

	// Count returns the number of indexed persons.
	Count(ctx context.Context) (uint64, error)
}
