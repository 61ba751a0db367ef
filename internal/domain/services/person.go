package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
)

// NewPerson holds the fields of an interactively created person.
type NewPerson struct {
	GivenName  string
	Surname    string
	Sex        entities.Sex
	Birth      entities.StructuredDate
	BirthPlace string
	Death      entities.StructuredDate
	DeathPlace string
	Notes      string
}

// PersonService provides lookups and edits of individual persons.
type PersonService struct {
	store ports.GraphStore
	guard *GraphGuard
}

// NewPersonService creates a new PersonService.
func NewPersonService(store ports.GraphStore, guard *GraphGuard) *PersonService {
	return &PersonService{store: store, guard: guard}
}

// Get returns a person by id, or ErrPersonNotFound.
func (s *PersonService) Get(ctx context.Context, id int64) (*entities.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting person %d: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("person %d: %w", id, ports.ErrPersonNotFound)
	}
	return p, nil
}

// Resolve finds a person by a reference that is either a numeric id or a
// directory name.
func (s *PersonService) Resolve(ctx context.Context, ref string) (*entities.Person, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrInvalidPersonRef
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.Get(ctx, id)
	}

	p, err := s.store.FindPersonByDirectoryName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("finding person %q: %w", ref, err)
	}
	if p == nil {
		return nil, fmt.Errorf("person %q: %w", ref, ports.ErrPersonNotFound)
	}
	return p, nil
}

// List returns persons ordered by surname and given name.
func (s *PersonService) List(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	persons, err := s.store.ListPersons(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	return persons, nil
}

// Search returns persons whose name contains the query.
func (s *PersonService) Search(ctx context.Context, query string, limit int) ([]*entities.Person, error) {
	persons, err := s.store.SearchPersons(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching persons: %w", err)
	}
	return persons, nil
}

// Count returns the number of persons.
func (s *PersonService) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountPersons(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return n, nil
}

// Create stores a new person with a unique directory name.
func (s *PersonService) Create(ctx context.Context, in NewPerson) (*entities.Person, error) {
	sex := in.Sex
	if sex == "" {
		sex = entities.SexUnknown
	}
	person := &entities.Person{
		GivenName:  strings.TrimSpace(in.GivenName),
		Surname:    strings.TrimSpace(in.Surname),
		Sex:        sex,
		Birth:      in.Birth,
		BirthPlace: in.BirthPlace,
		Death:      in.Death,
		DeathPlace: in.DeathPlace,
		Notes:      in.Notes,
	}

	err := s.guard.Write(func() error {
		return s.store.WithinTx(ctx, func(w ports.GraphWriter) error {
			name, err := UniqueDirectoryName(ctx, w, person.GivenName, person.Surname)
			if err != nil {
				return err
			}
			person.DirectoryName = name
			return w.CreatePerson(ctx, person)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}
	return person, nil
}

// SetBookmark sets or clears the bookmark flag of a person.
func (s *PersonService) SetBookmark(ctx context.Context, id int64, bookmarked bool) error {
	return s.guard.Write(func() error {
		if err := s.store.SetBookmark(ctx, id, bookmarked); err != nil {
			return fmt.Errorf("setting bookmark: %w", err)
		}
		return nil
	})
}

// History returns the most recent import runs first.
func (s *PersonService) History(ctx context.Context, limit int) ([]entities.ImportRun, error) {
	runs, err := s.store.ListImportRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing import runs: %w", err)
	}
	return runs, nil
}
