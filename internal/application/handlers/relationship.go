package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/services"
)

// ValidRelations lists the relation words accepted by HandleCreate.
var ValidRelations = []string{"parent", "child", "spouse", "sibling"}

// RelationshipHandler handles relationship operations.
type RelationshipHandler struct {
	service *services.RelationshipService
	persons *services.PersonService
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(service *services.RelationshipService, persons *services.PersonService) *RelationshipHandler {
	return &RelationshipHandler{
		service: service,
		persons: persons,
	}
}

// ListOptions configures relationship listing behavior.
type ListOptions struct {
	Category string // parent_child, spouse or sibling (empty = all)
}

// ListResult contains a person and their relatives.
type ListResult struct {
	Person    *entities.Person    `json:"person"`
	Relatives []services.Relative `json:"relatives"`
}

// HandleCreate relates two persons given by reference. relation names the
// role refB plays for refA: "relate karl parent erik" makes erik a parent of karl.
func (h *RelationshipHandler) HandleCreate(
	ctx context.Context,
	refA string,
	relation string,
	refB string,
) (*entities.Relationship, error) {
	kinship, err := services.ParseKinship(relation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	a, err := h.persons.Resolve(ctx, refA)
	if err != nil {
		return nil, err
	}
	b, err := h.persons.Resolve(ctx, refB)
	if err != nil {
		return nil, err
	}

	return h.service.Relate(ctx, a.ID, kinship, b.ID)
}

// HandleDelete removes a relationship by ID.
func (h *RelationshipHandler) HandleDelete(ctx context.Context, id int64) error {
	return h.service.Delete(ctx, id)
}

// HandleList returns the relatives of a person with optional filtering.
func (h *RelationshipHandler) HandleList(ctx context.Context, ref string, opts ListOptions) (*ListResult, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	var categories []entities.Category
	if opts.Category != "" {
		category, err := ParseCategory(opts.Category)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	relatives, err := h.service.Relatives(ctx, person.ID, categories...)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}
	if relatives == nil {
		relatives = []services.Relative{}
	}

	return &ListResult{Person: person, Relatives: relatives}, nil
}

// ParseCategory accepts a category name or a relation word.
func ParseCategory(s string) (entities.Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parent_child", "parent", "child", "parents", "children":
		return entities.CategoryParentChild, nil
	case "spouse", "spouses":
		return entities.CategorySpouse, nil
	case "sibling", "siblings":
		return entities.CategorySibling, nil
	default:
		return "", fmt.Errorf("%w: invalid category %q (valid: parent_child, spouse, sibling)", ErrInvalidInput, s)
	}
}
