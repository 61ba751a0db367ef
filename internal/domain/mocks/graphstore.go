package mocks

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
)

// GraphStore is an in-memory implementation of ports.GraphStore.
// WithinTx snapshots the state and restores it when fn fails.
type GraphStore struct {
	mu            sync.RWMutex
	persons       map[int64]*entities.Person
	relationships map[int64]*entities.Relationship
	runs          []entities.ImportRun
	nextPersonID  int64
	nextRelID     int64

	// Err is returned by every operation when set.
	Err error
	// CreatePersonErr is returned by CreatePerson when set.
	CreatePersonErr error

	// Call tracking
	WithinTxCallCount     int
	CreatePersonCallCount int
}

var _ ports.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates an empty store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		persons:       make(map[int64]*entities.Person),
		relationships: make(map[int64]*entities.Relationship),
	}
}

// EnsureSchema is a no-op.
func (m *GraphStore) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close is a no-op.
func (m *GraphStore) Close() error {
	return nil
}

// WithinTx runs fn and rolls every change back when it returns an error.
func (m *GraphStore) WithinTx(_ context.Context, fn func(ports.GraphWriter) error) error {
	m.mu.Lock()
	m.WithinTxCallCount++
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	persons := make(map[int64]*entities.Person, len(m.persons))
	for id, p := range m.persons {
		cp := *p
		persons[id] = &cp
	}
	rels := maps.Clone(m.relationships)
	runs := slices.Clone(m.runs)
	nextPerson, nextRel := m.nextPersonID, m.nextRelID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.persons, m.relationships, m.runs = persons, rels, runs
		m.nextPersonID, m.nextRelID = nextPerson, nextRel
		m.mu.Unlock()
		return err
	}
	return nil
}

// CreatePerson stores a copy of the person and sets its ID.
func (m *GraphStore) CreatePerson(_ context.Context, p *entities.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatePersonCallCount++
	if m.Err != nil {
		return m.Err
	}
	if m.CreatePersonErr != nil {
		return m.CreatePersonErr
	}

	for _, existing := range m.persons {
		if existing.DirectoryName == p.DirectoryName {
			return fmt.Errorf("creating person %q: %w", p.DirectoryName, ports.ErrDirectoryNameTaken)
		}
		if p.ExternalID != "" && existing.ExternalSource == p.ExternalSource && existing.ExternalID == p.ExternalID {
			return fmt.Errorf("creating person %q: %w", p.DirectoryName, ports.ErrDuplicateExternalID)
		}
	}

	m.nextPersonID++
	p.ID = m.nextPersonID
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Sex == "" {
		p.Sex = entities.SexUnknown
	}
	cp := *p
	m.persons[p.ID] = &cp
	return nil
}

// UpdatePerson replaces the stored person; the directory name cannot change.
func (m *GraphStore) UpdatePerson(_ context.Context, p *entities.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.persons[p.ID]
	if !ok {
		return fmt.Errorf("updating person %d: %w", p.ID, ports.ErrPersonNotFound)
	}
	if existing.DirectoryName != p.DirectoryName {
		return fmt.Errorf("updating person %d: %w", p.ID, ports.ErrDirectoryNameImmutable)
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.persons[p.ID] = &cp
	return nil
}

// SetBookmark sets the bookmark flag.
func (m *GraphStore) SetBookmark(_ context.Context, personID int64, bookmarked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.persons[personID]
	if !ok {
		return fmt.Errorf("setting bookmark on %d: %w", personID, ports.ErrPersonNotFound)
	}
	cp := *p
	cp.Bookmarked = bookmarked
	m.persons[personID] = &cp
	return nil
}

// GetPerson returns a copy of the person, or nil.
func (m *GraphStore) GetPerson(_ context.Context, id int64) (*entities.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.persons[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

// GetPersons returns copies of the found persons ordered by ID.
func (m *GraphStore) GetPersons(_ context.Context, ids []int64) ([]*entities.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]*entities.Person, 0, len(ids))
	for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
		if p, ok := m.persons[id]; ok {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

// FindPersonByDirectoryName finds a person by directory name.
func (m *GraphStore) FindPersonByDirectoryName(_ context.Context, name string) (*entities.Person, error) {
	return m.findPerson(func(p *entities.Person) bool { return p.DirectoryName == name })
}

// FindPersonByExternalID finds a person by import identity.
func (m *GraphStore) FindPersonByExternalID(_ context.Context, source, externalID string) (*entities.Person, error) {
	return m.findPerson(func(p *entities.Person) bool {
		return p.ExternalID != "" && p.ExternalSource == source && p.ExternalID == externalID
	})
}

// DirectoryNameExists reports whether the directory name is taken.
func (m *GraphStore) DirectoryNameExists(ctx context.Context, name string) (bool, error) {
	p, err := m.FindPersonByDirectoryName(ctx, name)
	return p != nil, err
}

// ListPersons lists persons ordered by surname, given name and ID.
func (m *GraphStore) ListPersons(_ context.Context, limit, offset int) ([]*entities.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	all := m.sortedPersons(func(*entities.Person) bool { return true })
	if offset >= len(all) {
		return []*entities.Person{}, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// SearchPersons matches a case-insensitive fragment of the full or directory name.
func (m *GraphStore) SearchPersons(_ context.Context, query string, limit int) ([]*entities.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	found := m.sortedPersons(func(p *entities.Person) bool {
		full := strings.ToLower(p.GivenName + " " + p.Surname)
		return strings.Contains(full, q) || strings.Contains(p.DirectoryName, q)
	})
	if limit >= 0 && limit < len(found) {
		found = found[:limit]
	}
	return found, nil
}

// CountPersons returns the number of persons.
func (m *GraphStore) CountPersons(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.persons), m.Err
}

// CreateRelationship stores a relationship after the store's checks.
func (m *GraphStore) CreateRelationship(_ context.Context, rel *entities.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if rel.LowID == rel.HighID {
		return ports.ErrSelfRelationship
	}
	if rel.LowID > rel.HighID {
		return fmt.Errorf("relationship %d-%d is not in canonical order", rel.LowID, rel.HighID)
	}
	if m.persons[rel.LowID] == nil || m.persons[rel.HighID] == nil {
		return fmt.Errorf("creating relationship %d-%d: %w", rel.LowID, rel.HighID, ports.ErrPersonNotFound)
	}
	for _, existing := range m.relationships {
		if existing.LowID == rel.LowID && existing.HighID == rel.HighID {
			return fmt.Errorf("creating relationship %d-%d: %w", rel.LowID, rel.HighID, ports.ErrDuplicateRelationship)
		}
	}

	m.nextRelID++
	rel.ID = m.nextRelID
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	cp := *rel
	m.relationships[rel.ID] = &cp
	return nil
}

// DeleteRelationship removes a relationship by ID.
func (m *GraphStore) DeleteRelationship(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.relationships[id]; !ok {
		return fmt.Errorf("deleting relationship %d: %w", id, ports.ErrRelationshipNotFound)
	}
	delete(m.relationships, id)
	return nil
}

// RelationshipsOf returns the relationships of a person ordered by ID.
func (m *GraphStore) RelationshipsOf(_ context.Context, personID int64) ([]entities.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.Relationship, 0)
	for _, rel := range m.relationships {
		if rel.Involves(personID) {
			result = append(result, *rel)
		}
	}
	slices.SortFunc(result, func(a, b entities.Relationship) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// RelationshipBetween returns the relationship of an unordered pair, or nil.
func (m *GraphStore) RelationshipBetween(_ context.Context, a, b int64) (*entities.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	low, high := min(a, b), max(a, b)
	for _, rel := range m.relationships {
		if rel.LowID == low && rel.HighID == high {
			cp := *rel
			return &cp, nil
		}
	}
	return nil, nil
}

// Exists reports whether the unordered pair has a relationship.
func (m *GraphStore) Exists(ctx context.Context, a, b int64) (bool, error) {
	rel, err := m.RelationshipBetween(ctx, a, b)
	return rel != nil, err
}

// CountRelationships returns the number of relationships.
func (m *GraphStore) CountRelationships(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relationships), m.Err
}

// RecordImportRun appends an import run.
func (m *GraphStore) RecordImportRun(_ context.Context, run *entities.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	}
	m.runs = append(m.runs, *run)
	return nil
}

// ListImportRuns returns the most recent runs first.
func (m *GraphStore) ListImportRuns(_ context.Context, limit int) ([]entities.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	runs := slices.Clone(m.runs)
	slices.Reverse(runs)
	if limit >= 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// AddPerson stores a person directly, for test setup.
func (m *GraphStore) AddPerson(given, surname string) *entities.Person {
	p := &entities.Person{
		GivenName:     given,
		Surname:       surname,
		DirectoryName: strings.ToLower(given + "_" + surname),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.persons {
		if existing.DirectoryName == p.DirectoryName {
			p.DirectoryName = fmt.Sprintf("%s_%d", p.DirectoryName, m.nextPersonID+1)
			break
		}
	}
	m.nextPersonID++
	p.ID = m.nextPersonID
	p.Sex = entities.SexUnknown
	cp := *p
	m.persons[p.ID] = &cp
	return p
}

// Relate stores a relationship directly, for test setup. It panics on invalid input.
func (m *GraphStore) Relate(a, b int64, category entities.Category, parentID int64) *entities.Relationship {
	rel, err := entities.NewRelationship(a, b, category, parentID)
	if err != nil {
		panic(err)
	}
	if err := m.CreateRelationship(context.Background(), rel); err != nil {
		panic(err)
	}
	return rel
}

func (m *GraphStore) findPerson(match func(*entities.Person) bool) (*entities.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.persons {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *GraphStore) sortedPersons(match func(*entities.Person) bool) []*entities.Person {
	result := make([]*entities.Person, 0, len(m.persons))
	for _, p := range m.persons {
		if match(p) {
			cp := *p
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *entities.Person) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Surname), strings.ToLower(b.Surname)),
			cmp.Compare(strings.ToLower(a.GivenName), strings.ToLower(b.GivenName)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return result
}
