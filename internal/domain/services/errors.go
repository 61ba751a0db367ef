package services

import "errors"

var (
	// ErrInvalidGenerations is returned when a tree is requested with a
	// generation bound outside MinGenerations..MaxGenerations.
	ErrInvalidGenerations = errors.New("generations must be between 1 and 5")

	// ErrImportCancelled is returned with a partial report when an import is
	// cancelled. The records processed before cancellation are kept.
	ErrImportCancelled = errors.New("import cancelled")

	// ErrInvalidPersonRef is returned when a person reference is empty.
	ErrInvalidPersonRef = errors.New("person reference is required")
)
