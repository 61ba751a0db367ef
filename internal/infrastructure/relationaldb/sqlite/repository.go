// Package sqlite provides a SQLite implementation of the GraphStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// dbExecutor is satisfied by both *sql.DB and *sql.Tx.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements ports.GraphStore using SQLite.
type Repository struct {
	*queries
	db   *sql.DB
	path string
}

var _ ports.GraphStore = (*Repository)(nil)

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	pragmas := []struct {
		stmt string
		desc string
	}{
		{"PRAGMA foreign_keys = ON", "enabling foreign keys"},
		{"PRAGMA journal_mode = WAL", "enabling WAL mode"},
		{"PRAGMA busy_timeout = 5000", "setting busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p.desc, err)
		}
	}

	return &Repository{
		queries: &queries{exec: db},
		db:      db,
		path:    cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Persons (nodes of the graph)
	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		given_name TEXT NOT NULL DEFAULT '',
		surname TEXT NOT NULL DEFAULT '',
		sex TEXT NOT NULL DEFAULT 'U',
		birth TEXT NOT NULL DEFAULT '',
		birth_place TEXT NOT NULL DEFAULT '',
		death TEXT NOT NULL DEFAULT '',
		death_place TEXT NOT NULL DEFAULT '',
		directory_name TEXT NOT NULL UNIQUE,
		profile_image_path TEXT NOT NULL DEFAULT '',
		bookmarked INTEGER NOT NULL DEFAULT 0,
		placeholder INTEGER NOT NULL DEFAULT 0,
		external_source TEXT,
		external_id TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(external_source, external_id)
	);
	CREATE INDEX IF NOT EXISTS idx_persons_name ON persons(surname, given_name);

	CREATE TRIGGER IF NOT EXISTS trg_persons_directory_name_immutable
	BEFORE UPDATE OF directory_name ON persons
	WHEN NEW.directory_name <> OLD.directory_name
	BEGIN
		SELECT RAISE(ABORT, 'directory_name is immutable');
	END;

	-- Relationships (one per unordered pair, stored low < high)
	CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_low_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		person_high_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		category TEXT NOT NULL CHECK (category IN ('parent_child', 'spouse', 'sibling')),
		parent_side TEXT NOT NULL DEFAULT '' CHECK (parent_side IN ('', 'low', 'high')),
		date TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		CHECK (person_low_id < person_high_id),
		UNIQUE(person_low_id, person_high_id)
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_high ON relationships(person_high_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_category ON relationships(category);

	-- Import runs (history of imports)
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		persons_created INTEGER NOT NULL DEFAULT 0,
		relationships_created INTEGER NOT NULL DEFAULT 0,
		duplicates_skipped INTEGER NOT NULL DEFAULT 0,
		unresolved_references INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a transaction and commits when it returns nil.
func (r *Repository) WithinTx(ctx context.Context, fn func(ports.GraphWriter) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&queries{exec: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// queries implements ports.GraphWriter over a database or a transaction.
type queries struct {
	exec dbExecutor
}

const personColumns = `id, given_name, surname, sex, birth, birth_place, death, death_place,
	directory_name, profile_image_path, bookmarked, placeholder, external_source, external_id,
	notes, created_at, updated_at`

const relationshipColumns = `id, person_low_id, person_high_id, category, parent_side, date, created_at`

// CreatePerson inserts a person and sets its ID and timestamps.
func (q *queries) CreatePerson(ctx context.Context, p *entities.Person) error {
	birth, err := encodeDate(p.Birth)
	if err != nil {
		return err
	}
	death, err := encodeDate(p.Death)
	if err != nil {
		return err
	}

	now := timeNow()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Sex == "" {
		p.Sex = entities.SexUnknown
	}

	query := `
		INSERT INTO persons (given_name, surname, sex, birth, birth_place, death, death_place,
			directory_name, profile_image_path, bookmarked, placeholder, external_source, external_id,
			notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.exec.ExecContext(ctx, query,
		p.GivenName,
		p.Surname,
		string(p.Sex),
		birth,
		p.BirthPlace,
		death,
		p.DeathPlace,
		p.DirectoryName,
		p.ProfileImagePath,
		p.Bookmarked,
		p.Placeholder,
		nullString(p.ExternalSource, p.ExternalID),
		nullString(p.ExternalID, p.ExternalID),
		p.Notes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return fmt.Errorf("creating person %q: %w", p.DirectoryName, mapped)
		}
		return fmt.Errorf("creating person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading person id: %w", err)
	}
	p.ID = id
	return nil
}

// UpdatePerson writes every mutable field of an existing person.
func (q *queries) UpdatePerson(ctx context.Context, p *entities.Person) error {
	birth, err := encodeDate(p.Birth)
	if err != nil {
		return err
	}
	death, err := encodeDate(p.Death)
	if err != nil {
		return err
	}
	p.UpdatedAt = timeNow()

	query := `
		UPDATE persons SET
			given_name = ?, surname = ?, sex = ?, birth = ?, birth_place = ?, death = ?,
			death_place = ?, directory_name = ?, profile_image_path = ?, bookmarked = ?,
			placeholder = ?, external_source = ?, external_id = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.exec.ExecContext(ctx, query,
		p.GivenName,
		p.Surname,
		string(p.Sex),
		birth,
		p.BirthPlace,
		death,
		p.DeathPlace,
		p.DirectoryName,
		p.ProfileImagePath,
		p.Bookmarked,
		p.Placeholder,
		nullString(p.ExternalSource, p.ExternalID),
		nullString(p.ExternalID, p.ExternalID),
		p.Notes,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return fmt.Errorf("updating person %d: %w", p.ID, mapped)
		}
		return fmt.Errorf("updating person: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("updating person %d: %w", p.ID, ports.ErrPersonNotFound)
	}
	return nil
}

// SetBookmark sets or clears the bookmark flag of a person.
func (q *queries) SetBookmark(ctx context.Context, personID int64, bookmarked bool) error {
	query := `UPDATE persons SET bookmarked = ?, updated_at = ? WHERE id = ?`
	result, err := q.exec.ExecContext(ctx, query, bookmarked, timeNow(), personID)
	if err != nil {
		return fmt.Errorf("setting bookmark: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("setting bookmark on %d: %w", personID, ports.ErrPersonNotFound)
	}
	return nil
}

// GetPerson finds a person by ID.
func (q *queries) GetPerson(ctx context.Context, id int64) (*entities.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = ?`
	return q.queryPerson(ctx, query, id)
}

// GetPersons finds multiple persons by their IDs in a single query.
func (q *queries) GetPersons(ctx context.Context, ids []int64) ([]*entities.Person, error) {
	if len(ids) == 0 {
		return []*entities.Person{}, nil
	}

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM persons WHERE id IN (%s) ORDER BY id`,
		personColumns, strings.Join(placeholders, ","))
	return q.queryPersons(ctx, query, args...)
}

// FindPersonByDirectoryName finds a person by directory name.
func (q *queries) FindPersonByDirectoryName(ctx context.Context, name string) (*entities.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE directory_name = ?`
	return q.queryPerson(ctx, query, name)
}

// FindPersonByExternalID finds a person imported from source with the given external id.
func (q *queries) FindPersonByExternalID(ctx context.Context, source, externalID string) (*entities.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE external_source = ? AND external_id = ?`
	return q.queryPerson(ctx, query, source, externalID)
}

// DirectoryNameExists reports whether a directory name is in use.
func (q *queries) DirectoryNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := q.exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM persons WHERE directory_name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking directory name: %w", err)
	}
	return exists, nil
}

// ListPersons lists persons ordered by surname and given name.
func (q *queries) ListPersons(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	query := `
		SELECT ` + personColumns + `
		FROM persons
		ORDER BY surname COLLATE NOCASE, given_name COLLATE NOCASE, id
		LIMIT ? OFFSET ?
	`
	return q.queryPersons(ctx, query, limit, offset)
}

// SearchPersons matches a name fragment against full names and directory names.
func (q *queries) SearchPersons(ctx context.Context, search string, limit int) ([]*entities.Person, error) {
	pattern := "%" + strings.TrimSpace(search) + "%"
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE (given_name || ' ' || surname) LIKE ? OR directory_name LIKE ?
		ORDER BY surname COLLATE NOCASE, given_name COLLATE NOCASE, id
		LIMIT ?
	`
	return q.queryPersons(ctx, query, pattern, pattern, limit)
}

// CountPersons returns the number of persons.
func (q *queries) CountPersons(ctx context.Context) (int, error) {
	var count int
	if err := q.exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return count, nil
}

// CreateRelationship inserts a canonical relationship and sets its ID.
func (q *queries) CreateRelationship(ctx context.Context, rel *entities.Relationship) error {
	if rel.LowID == rel.HighID {
		return ports.ErrSelfRelationship
	}
	if rel.LowID > rel.HighID {
		return fmt.Errorf("relationship %d-%d is not in canonical order", rel.LowID, rel.HighID)
	}

	date, err := encodeDate(rel.Date)
	if err != nil {
		return err
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO relationships (person_low_id, person_high_id, category, parent_side, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := q.exec.ExecContext(ctx, query,
		rel.LowID,
		rel.HighID,
		string(rel.Category),
		string(rel.ParentSide),
		date,
		rel.CreatedAt,
	)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return fmt.Errorf("creating relationship %d-%d: %w", rel.LowID, rel.HighID, mapped)
		}
		return fmt.Errorf("creating relationship: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading relationship id: %w", err)
	}
	rel.ID = id
	return nil
}

// DeleteRelationship deletes a relationship by ID.
func (q *queries) DeleteRelationship(ctx context.Context, id int64) error {
	result, err := q.exec.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting relationship %d: %w", id, ports.ErrRelationshipNotFound)
	}
	return nil
}

// RelationshipsOf returns every relationship involving the person.
func (q *queries) RelationshipsOf(ctx context.Context, personID int64) ([]entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE person_low_id = ? OR person_high_id = ?
		ORDER BY id
	`
	return q.queryRelationships(ctx, query, personID, personID)
}

// RelationshipBetween returns the relationship of an unordered pair, or nil.
func (q *queries) RelationshipBetween(ctx context.Context, a, b int64) (*entities.Relationship, error) {
	low, high := min(a, b), max(a, b)
	query := `SELECT ` + relationshipColumns + ` FROM relationships WHERE person_low_id = ? AND person_high_id = ?`
	rels, err := q.queryRelationships(ctx, query, low, high)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, nil
	}
	return &rels[0], nil
}

// Exists reports whether the unordered pair has a relationship.
func (q *queries) Exists(ctx context.Context, a, b int64) (bool, error) {
	low, high := min(a, b), max(a, b)
	var exists bool
	err := q.exec.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM relationships WHERE person_low_id = ? AND person_high_id = ?)`,
		low, high,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking relationship: %w", err)
	}
	return exists, nil
}

// CountRelationships returns the number of relationships.
func (q *queries) CountRelationships(ctx context.Context) (int, error) {
	var count int
	if err := q.exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

// RecordImportRun stores an import summary, assigning an ID when missing.
func (q *queries) RecordImportRun(ctx context.Context, run *entities.ImportRun) error {
	if run.ID == "" {
		run.ID = generateUUID()
	}

	query := `
		INSERT INTO import_runs (id, source, file_name, status, records_processed, persons_created,
			relationships_created, duplicates_skipped, unresolved_references, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.exec.ExecContext(ctx, query,
		run.ID,
		run.Source,
		run.FileName,
		string(run.Status),
		run.RecordsProcessed,
		run.PersonsCreated,
		run.RelationshipsCreated,
		run.DuplicatesSkipped,
		run.UnresolvedReferences,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording import run: %w", err)
	}
	return nil
}

// ListImportRuns returns the most recent import runs first.
func (q *queries) ListImportRuns(ctx context.Context, limit int) ([]entities.ImportRun, error) {
	query := `
		SELECT id, source, file_name, status, records_processed, persons_created,
			relationships_created, duplicates_skipped, unresolved_references, started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`
	rows, err := q.exec.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	defer rows.Close()

	result := make([]entities.ImportRun, 0)
	for rows.Next() {
		var run entities.ImportRun
		var status string
		if err := rows.Scan(
			&run.ID,
			&run.Source,
			&run.FileName,
			&status,
			&run.RecordsProcessed,
			&run.PersonsCreated,
			&run.RelationshipsCreated,
			&run.DuplicatesSkipped,
			&run.UnresolvedReferences,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		run.Status = entities.ImportStatus(status)
		result = append(result, run)
	}
	return result, rows.Err()
}

// queryPerson runs a query expected to return at most one person.
func (q *queries) queryPerson(ctx context.Context, query string, args ...any) (*entities.Person, error) {
	persons, err := q.queryPersons(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return nil, nil
	}
	return persons[0], nil
}

func (q *queries) queryPersons(ctx context.Context, query string, args ...any) ([]*entities.Person, error) {
	rows, err := q.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPerson(rows *sql.Rows) (*entities.Person, error) {
	var p entities.Person
	var sex, birth, death string
	var source, externalID sql.NullString

	if err := rows.Scan(
		&p.ID,
		&p.GivenName,
		&p.Surname,
		&sex,
		&birth,
		&p.BirthPlace,
		&death,
		&p.DeathPlace,
		&p.DirectoryName,
		&p.ProfileImagePath,
		&p.Bookmarked,
		&p.Placeholder,
		&source,
		&externalID,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning person: %w", err)
	}

	p.Sex = entities.Sex(sex)
	p.ExternalSource = source.String
	p.ExternalID = externalID.String

	var err error
	if p.Birth, err = decodeDate(birth); err != nil {
		return nil, err
	}
	if p.Death, err = decodeDate(death); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) queryRelationships(ctx context.Context, query string, args ...any) ([]entities.Relationship, error) {
	rows, err := q.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	result := make([]entities.Relationship, 0)
	for rows.Next() {
		var rel entities.Relationship
		var category, side, date string

		if err := rows.Scan(
			&rel.ID,
			&rel.LowID,
			&rel.HighID,
			&category,
			&side,
			&date,
			&rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}

		rel.Category = entities.Category(category)
		rel.ParentSide = entities.ParentSide(side)
		if rel.Date, err = decodeDate(date); err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	return result, rows.Err()
}

// encodeDate stores a date as JSON; an empty date is stored as "".
func encodeDate(d entities.StructuredDate) (string, error) {
	if d.IsEmpty() {
		return "", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding date: %w", err)
	}
	return string(data), nil
}

func decodeDate(s string) (entities.StructuredDate, error) {
	var d entities.StructuredDate
	if s == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return d, fmt.Errorf("decoding date: %w", err)
	}
	return d, nil
}

// nullString stores value as NULL unless the external id is set, so persons
// without an import identity never collide on the unique index.
func nullString(value, externalID string) sql.NullString {
	return sql.NullString{String: value, Valid: externalID != ""}
}

// constraintError maps SQLite constraint failures to port errors, or returns nil.
func constraintError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: relationships."):
		return ports.ErrDuplicateRelationship
	case strings.Contains(msg, "UNIQUE constraint failed: persons.directory_name"):
		return ports.ErrDirectoryNameTaken
	case strings.Contains(msg, "UNIQUE constraint failed: persons.external"):
		return ports.ErrDuplicateExternalID
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ports.ErrPersonNotFound
	case strings.Contains(msg, "directory_name is immutable"):
		return ports.ErrDirectoryNameImmutable
	default:
		return nil
	}
}
