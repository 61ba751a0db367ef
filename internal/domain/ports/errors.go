package ports

import (
	"errors"

	"github.com/carleson/genlib/internal/domain/entities"
)

var (
	// ErrPersonNotFound is returned when a referenced person does not exist.
	ErrPersonNotFound = errors.New("person not found")

	// ErrDuplicateRelationship is returned when the unordered pair of persons
	// already has a stored relationship.
	ErrDuplicateRelationship = errors.New("relationship already exists between these persons")

	// ErrSelfRelationship is returned when both ends of a relationship are the same person.
	ErrSelfRelationship = entities.ErrSelfRelationship

	// ErrRelationshipNotFound is returned when deleting an unknown relationship.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrDirectoryNameTaken is returned when a new person's directory name is in use.
	ErrDirectoryNameTaken = errors.New("directory name already in use")

	// ErrDirectoryNameImmutable is returned when an update tries to rename a person's directory.
	ErrDirectoryNameImmutable = errors.New("directory name cannot be changed")

	// ErrDuplicateExternalID is returned when an imported identity is stored twice.
	ErrDuplicateExternalID = errors.New("external id already imported from this source")
)
