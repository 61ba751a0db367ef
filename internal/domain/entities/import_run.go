package entities

import "time"

// ImportStatus is the outcome of an import run.
type ImportStatus string

const (
	ImportCompleted ImportStatus = "completed"
	ImportCancelled ImportStatus = "cancelled"
)

// ImportRun is the persisted summary of one import.
type ImportRun struct {
	ID                   string       `json:"id"`
	Source               string       `json:"source"`
	FileName             string       `json:"file_name"`
	Status               ImportStatus `json:"status"`
	RecordsProcessed     int          `json:"records_processed"`
	PersonsCreated       int          `json:"persons_created"`
	RelationshipsCreated int          `json:"relationships_created"`
	DuplicatesSkipped    int          `json:"duplicates_skipped"`
	UnresolvedReferences int          `json:"unresolved_references"`
	StartedAt            time.Time    `json:"started_at"`
	FinishedAt           time.Time    `json:"finished_at"`
}
