package handlers

import (
	"context"
	"fmt"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/services"
)

// TreeHandler builds family trees for persons given by reference.
type TreeHandler struct {
	trees              *services.FamilyTreeService
	persons            *services.PersonService
	defaultGenerations int
}

// NewTreeHandler creates a new TreeHandler. defaultGenerations applies when
// a request gives no bound.
func NewTreeHandler(trees *services.FamilyTreeService, persons *services.PersonService, defaultGenerations int) *TreeHandler {
	if defaultGenerations == 0 {
		defaultGenerations = 3
	}
	return &TreeHandler{trees: trees, persons: persons, defaultGenerations: defaultGenerations}
}

// Handle builds the tree around ref. A zero generations uses the default.
func (h *TreeHandler) Handle(ctx context.Context, ref string, generations int) (*entities.FamilyTree, error) {
	if generations == 0 {
		generations = h.defaultGenerations
	}
	if generations < services.MinGenerations || generations > services.MaxGenerations {
		return nil, fmt.Errorf("%w: got %d", services.ErrInvalidGenerations, generations)
	}

	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return h.trees.Build(ctx, person.ID, generations)
}

// Layout returns the node size and spacing of built trees.
func (h *TreeHandler) Layout() services.TreeLayout {
	return h.trees.Layout()
}
