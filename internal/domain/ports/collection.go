package ports

import "context"

// CollectionManager creates and drops the search collection of an archive.
// Archive management only needs these two calls, not a full PersonIndex.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
