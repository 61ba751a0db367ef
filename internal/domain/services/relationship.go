package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
)

// Kinship is the role a related person plays relative to another person.
type Kinship string

const (
	KinshipParent  Kinship = "parent"
	KinshipChild   Kinship = "child"
	KinshipSpouse  Kinship = "spouse"
	KinshipSibling Kinship = "sibling"
)

// ParseKinship converts a user-supplied relation word to a Kinship.
func ParseKinship(s string) (Kinship, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parent", "father", "mother":
		return KinshipParent, nil
	case "child", "son", "daughter":
		return KinshipChild, nil
	case "spouse", "husband", "wife", "partner":
		return KinshipSpouse, nil
	case "sibling", "brother", "sister":
		return KinshipSibling, nil
	default:
		return "", fmt.Errorf("unknown relation %q (valid: parent, child, spouse, sibling)", s)
	}
}

// Relative is a relationship seen from one of its persons.
type Relative struct {
	Relationship entities.Relationship `json:"relationship"`
	Person       *entities.Person      `json:"person"`
	Kinship      Kinship               `json:"kinship"`
	Inferred     bool                  `json:"inferred,omitempty"` // sibling through a shared parent
}

// RelationshipService manages relationships between persons.
type RelationshipService struct {
	store ports.GraphStore
	guard *GraphGuard
}

// NewRelationshipService creates a new RelationshipService.
func NewRelationshipService(store ports.GraphStore, guard *GraphGuard) *RelationshipService {
	return &RelationshipService{store: store, guard: guard}
}

// Create relates a and b. parentID names the parent of a parent-child
// relationship and is zero otherwise. A second relationship between the same
// pair fails with ErrDuplicateRelationship whatever its category or order.
func (s *RelationshipService) Create(
	ctx context.Context,
	a, b int64,
	category entities.Category,
	parentID int64,
) (*entities.Relationship, error) {
	rel, err := entities.NewRelationship(a, b, category, parentID)
	if err != nil {
		return nil, err
	}

	err = s.guard.Write(func() error {
		return s.store.CreateRelationship(ctx, rel)
	})
	if err != nil {
		return nil, fmt.Errorf("creating relationship: %w", err)
	}
	return rel, nil
}

// Relate creates the relationship in which b plays the given kinship to a,
// e.g. Relate(ctx, a, KinshipParent, b) records b as a parent of a.
func (s *RelationshipService) Relate(ctx context.Context, a int64, kinship Kinship, b int64) (*entities.Relationship, error) {
	switch kinship {
	case KinshipParent:
		return s.Create(ctx, a, b, entities.CategoryParentChild, b)
	case KinshipChild:
		return s.Create(ctx, a, b, entities.CategoryParentChild, a)
	case KinshipSpouse:
		return s.Create(ctx, a, b, entities.CategorySpouse, 0)
	case KinshipSibling:
		return s.Create(ctx, a, b, entities.CategorySibling, 0)
	default:
		return nil, fmt.Errorf("unknown relation %q", kinship)
	}
}

// FindRelationshipsOf returns the relationships of a person, optionally
// restricted to the given categories.
func (s *RelationshipService) FindRelationshipsOf(
	ctx context.Context,
	personID int64,
	categories ...entities.Category,
) ([]entities.Relationship, error) {
	var result []entities.Relationship
	err := s.guard.Read(func() error {
		var err error
		result, err = s.relationshipsOf(ctx, personID, categories)
		return err
	})
	return result, err
}

func (s *RelationshipService) relationshipsOf(
	ctx context.Context,
	personID int64,
	categories []entities.Category,
) ([]entities.Relationship, error) {
	p, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("getting person %d: %w", personID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("person %d: %w", personID, ports.ErrPersonNotFound)
	}

	rels, err := s.store.RelationshipsOf(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("finding relationships of %d: %w", personID, err)
	}
	if len(categories) == 0 {
		return rels, nil
	}
	return slices.DeleteFunc(rels, func(r entities.Relationship) bool {
		return !slices.Contains(categories, r.Category)
	}), nil
}

// Exists reports whether a and b are related in any category.
func (s *RelationshipService) Exists(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := s.guard.Read(func() error {
		var err error
		exists, err = s.store.Exists(ctx, a, b)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("checking relationship: %w", err)
	}
	return exists, nil
}

// Parents returns the parents of a person.
func (s *RelationshipService) Parents(ctx context.Context, personID int64) ([]*entities.Person, error) {
	return s.kin(ctx, personID, KinshipParent)
}

// Children returns the children of a person.
func (s *RelationshipService) Children(ctx context.Context, personID int64) ([]*entities.Person, error) {
	return s.kin(ctx, personID, KinshipChild)
}

// Spouses returns the spouses of a person.
func (s *RelationshipService) Spouses(ctx context.Context, personID int64) ([]*entities.Person, error) {
	return s.kin(ctx, personID, KinshipSpouse)
}

// Siblings returns explicit siblings and persons sharing a parent.
func (s *RelationshipService) Siblings(ctx context.Context, personID int64) ([]*entities.Person, error) {
	return s.kin(ctx, personID, KinshipSibling)
}

func (s *RelationshipService) kin(ctx context.Context, personID int64, kinship Kinship) ([]*entities.Person, error) {
	relatives, err := s.Relatives(ctx, personID)
	if err != nil {
		return nil, err
	}
	var persons []*entities.Person
	for _, r := range relatives {
		if r.Kinship == kinship {
			persons = append(persons, r.Person)
		}
	}
	return persons, nil
}

// Relatives returns every person related to personID with the role they
// play, including siblings inferred from shared parents. Results are ordered
// by kinship, then birth date, then id. Categories restrict the result when given.
func (s *RelationshipService) Relatives(
	ctx context.Context,
	personID int64,
	categories ...entities.Category,
) ([]Relative, error) {
	var result []Relative
	err := s.guard.Read(func() error {
		var err error
		result, err = s.relatives(ctx, personID, categories)
		return err
	})
	return result, err
}

func (s *RelationshipService) relatives(
	ctx context.Context,
	personID int64,
	categories []entities.Category,
) ([]Relative, error) {
	rels, err := s.relationshipsOf(ctx, personID, nil)
	if err != nil {
		return nil, err
	}

	type pending struct {
		rel      entities.Relationship
		other    int64
		kinship  Kinship
		inferred bool
	}
	var found []pending
	seen := map[int64]bool{personID: true}

	for _, r := range rels {
		p := pending{rel: r, other: r.Other(personID)}
		switch r.Category {
		case entities.CategoryParentChild:
			if _, ok := r.ParentFor(personID); ok {
				p.kinship = KinshipParent
			} else {
				p.kinship = KinshipChild
			}
		case entities.CategorySpouse:
			p.kinship = KinshipSpouse
		case entities.CategorySibling:
			p.kinship = KinshipSibling
		}
		seen[p.other] = true
		found = append(found, p)
	}

	wantSiblings := len(categories) == 0 || slices.Contains(categories, entities.CategorySibling)
	if wantSiblings {
		for _, r := range rels {
			parentID, ok := r.ParentFor(personID)
			if !ok {
				continue
			}
			parentRels, err := s.store.RelationshipsOf(ctx, parentID)
			if err != nil {
				return nil, fmt.Errorf("finding relationships of %d: %w", parentID, err)
			}
			for _, pr := range parentRels {
				childID, ok := pr.ChildFor(parentID)
				if !ok || seen[childID] {
					continue
				}
				seen[childID] = true
				found = append(found, pending{rel: pr, other: childID, kinship: KinshipSibling, inferred: true})
			}
		}
	}

	if len(categories) > 0 {
		found = slices.DeleteFunc(found, func(p pending) bool {
			return !p.inferred && !slices.Contains(categories, p.rel.Category)
		})
	}

	ids := make([]int64, 0, len(found))
	for _, p := range found {
		ids = append(ids, p.other)
	}
	persons, err := s.store.GetPersons(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading relatives: %w", err)
	}
	byID := make(map[int64]*entities.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}

	result := make([]Relative, 0, len(found))
	for _, p := range found {
		person, ok := byID[p.other]
		if !ok {
			continue
		}
		result = append(result, Relative{Relationship: p.rel, Person: person, Kinship: p.kinship, Inferred: p.inferred})
	}

	slices.SortFunc(result, func(a, b Relative) int {
		return cmp.Or(
			cmp.Compare(kinshipOrder(a.Kinship), kinshipOrder(b.Kinship)),
			a.Person.Birth.Compare(b.Person.Birth),
			cmp.Compare(a.Person.ID, b.Person.ID),
		)
	})
	return result, nil
}

func kinshipOrder(k Kinship) int {
	switch k {
	case KinshipParent:
		return 0
	case KinshipSpouse:
		return 1
	case KinshipSibling:
		return 2
	default:
		return 3
	}
}

// Delete removes a relationship.
func (s *RelationshipService) Delete(ctx context.Context, id int64) error {
	return s.guard.Write(func() error {
		if err := s.store.DeleteRelationship(ctx, id); err != nil {
			return fmt.Errorf("deleting relationship %d: %w", id, err)
		}
		return nil
	})
}

// Count returns the number of stored relationships.
func (s *RelationshipService) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountRelationships(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return n, nil
}
