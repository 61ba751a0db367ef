package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

// DefaultListLimit is used when no limit is given.
const DefaultListLimit = 50

// PersonHandler handles person lookups and edits.
type PersonHandler struct {
	persons       *services.PersonService
	relationships *services.RelationshipService
}

// NewPersonHandler creates a new PersonHandler.
func NewPersonHandler(persons *services.PersonService, relationships *services.RelationshipService) *PersonHandler {
	return &PersonHandler{persons: persons, relationships: relationships}
}

// PersonListOptions configures person listing.
type PersonListOptions struct {
	Search string
	Limit  int
	Offset int
}

// PersonListResult is a page of persons.
type PersonListResult struct {
	Persons []*entities.Person `json:"persons"`
	Total   int                `json:"total"`
}

// PersonDetails is a person together with their relatives.
type PersonDetails struct {
	Person    *entities.Person    `json:"person"`
	Relatives []services.Relative `json:"relatives"`
}

// AddPersonOptions holds user input for a new person. Dates are free text.
type AddPersonOptions struct {
	GivenName  string
	Surname    string
	Sex        string
	Birth      string
	BirthPlace string
	Death      string
	DeathPlace string
	Notes      string
}

// HandleList lists persons, or searches them by name when opts.Search is set.
func (h *PersonHandler) HandleList(ctx context.Context, opts PersonListOptions) (*PersonListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var persons []*entities.Person
	var err error
	if strings.TrimSpace(opts.Search) != "" {
		persons, err = h.persons.Search(ctx, opts.Search, limit)
	} else {
		persons, err = h.persons.List(ctx, limit, opts.Offset)
	}
	if err != nil {
		return nil, err
	}

	total, err := h.persons.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PersonListResult{Persons: persons, Total: total}, nil
}

// HandleShow returns one person with their relatives.
func (h *PersonHandler) HandleShow(ctx context.Context, ref string) (*PersonDetails, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	relatives, err := h.relationships.Relatives(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	if relatives == nil {
		relatives = []services.Relative{}
	}
	return &PersonDetails{Person: person, Relatives: relatives}, nil
}

// HandleAdd creates a person.
func (h *PersonHandler) HandleAdd(ctx context.Context, opts AddPersonOptions) (*entities.Person, error) {
	if strings.TrimSpace(opts.GivenName) == "" && strings.TrimSpace(opts.Surname) == "" {
		return nil, fmt.Errorf("%w: a given name or surname is required", ErrInvalidInput)
	}
	return h.persons.Create(ctx, services.NewPerson{
		GivenName:  opts.GivenName,
		Surname:    opts.Surname,
		Sex:        entities.ParseSex(opts.Sex),
		Birth:      parseOptionalDate(opts.Birth),
		BirthPlace: strings.TrimSpace(opts.BirthPlace),
		Death:      parseOptionalDate(opts.Death),
		DeathPlace: strings.TrimSpace(opts.DeathPlace),
		Notes:      strings.TrimSpace(opts.Notes),
	})
}

// HandleBookmark sets or clears the bookmark of a person.
func (h *PersonHandler) HandleBookmark(ctx context.Context, ref string, bookmarked bool) (*entities.Person, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := h.persons.SetBookmark(ctx, person.ID, bookmarked); err != nil {
		return nil, err
	}
	person.Bookmarked = bookmarked
	return person, nil
}

// HandleHistory lists recent import runs.
func (h *PersonHandler) HandleHistory(ctx context.Context, limit int) ([]entities.ImportRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return h.persons.History(ctx, limit)
}

func parseOptionalDate(raw string) entities.StructuredDate {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entities.StructuredDate{}
	}
	return parsers.ParseDate(raw)
}
