// Package ports defines interfaces for storage and external service communication.
package ports

import (
	"context"

	"github.com/carleson/genlib/internal/domain/entities"
)

// GraphReader defines read access to the person/relationship graph.
// Lookups that find nothing return a nil value and a nil error.
type GraphReader interface {
	// GetPerson finds a person by internal id.
	GetPerson(ctx context.Context, id int64) (*entities.Person, error)

	// GetPersons finds several persons by id. Missing ids are left out.
	GetPersons(ctx context.Context, ids []int64) ([]*entities.Person, error)

	// FindPersonByDirectoryName finds a person by their unique directory name.
	FindPersonByDirectoryName(ctx context.Context, name string) (*entities.Person, error)

	// FindPersonByExternalID finds a person created by an import from the given source.
	FindPersonByExternalID(ctx context.Context, source, externalID string) (*entities.Person, error)

	// DirectoryNameExists reports whether a directory name is taken.
	DirectoryNameExists(ctx context.Context, name string) (bool, error)

	// ListPersons lists persons ordered by surname and given name.
	ListPersons(ctx context.Context, limit, offset int) ([]*entities.Person, error)

	// SearchPersons matches persons by a case-insensitive name fragment.
	SearchPersons(ctx context.Context, query string, limit int) ([]*entities.Person, error)

	// CountPersons returns the number of persons.
	CountPersons(ctx context.Context) (int, error)

	// RelationshipsOf returns every relationship involving the person, ordered by id.
	RelationshipsOf(ctx context.Context, personID int64) ([]entities.Relationship, error)

	// RelationshipBetween returns the relationship stored for an unordered pair, or nil.
	RelationshipBetween(ctx context.Context, a, b int64) (*entities.Relationship, error)

	// Exists reports whether any relationship is stored for the unordered pair.
	Exists(ctx context.Context, a, b int64) (bool, error)

	// CountRelationships returns the number of relationships.
	CountRelationships(ctx context.Context) (int, error)

	// ListImportRuns returns the most recent import runs first.
	ListImportRuns(ctx context.Context, limit int) ([]entities.ImportRun, error)
}

// GraphWriter defines mutations of the graph. Implementations also serve reads
// so a transaction sees its own writes.
type GraphWriter interface {
	GraphReader

	// CreatePerson stores a new person and sets its ID.
	CreatePerson(ctx context.Context, person *entities.Person) error

	// UpdatePerson stores changed fields of an existing person. The directory
	// name cannot change.
	UpdatePerson(ctx context.Context, person *entities.Person) error

	// SetBookmark sets the bookmark flag of a person.
	SetBookmark(ctx context.Context, personID int64, bookmarked bool) error

	// CreateRelationship stores a relationship built by entities.NewRelationship
	// and sets its ID. It fails with ErrSelfRelationship, ErrDuplicateRelationship
	// when the unordered pair already has a relationship of any category, or
	// ErrPersonNotFound when either person does not exist.
	CreateRelationship(ctx context.Context, rel *entities.Relationship) error

	// DeleteRelationship deletes a relationship by id.
	DeleteRelationship(ctx context.Context, id int64) error

	// RecordImportRun stores the summary of an import.
	RecordImportRun(ctx context.Context, run *entities.ImportRun) error
}

// GraphStore is the persistent relationship graph.
type GraphStore interface {
	GraphWriter

	// EnsureSchema creates the storage schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error

	// WithinTx runs fn against a transaction. Every mutation made through the
	// writer is committed when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(GraphWriter) error) error
}
