package entities

import (
	"errors"
	"fmt"
	"time"
)

// Category defines the kind of relationship between two persons.
type Category string

const (
	CategoryParentChild Category = "parent_child"
	CategorySpouse      Category = "spouse"
	CategorySibling     Category = "sibling"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryParentChild, CategorySpouse, CategorySibling:
		return true
	default:
		return false
	}
}

// ParentSide records which stored person of a parent-child relationship is the parent.
// Storage order is by id and says nothing about generational direction.
type ParentSide string

const (
	ParentSideNone ParentSide = ""
	ParentSideLow  ParentSide = "low"
	ParentSideHigh ParentSide = "high"
)

// ErrSelfRelationship is returned when both ends of a relationship are the same person.
var ErrSelfRelationship = errors.New("a person cannot be related to themselves")

// Relationship connects two persons. LowID is always less than HighID.
type Relationship struct {
	ID         int64          `json:"id"`
	LowID      int64          `json:"person_low_id"`
	HighID     int64          `json:"person_high_id"`
	Category   Category       `json:"category"`
	ParentSide ParentSide     `json:"parent_side,omitempty"`
	Date       StructuredDate `json:"date,omitempty"` // marriage date for spouses
	CreatedAt  time.Time      `json:"created_at"`
}

// NewRelationship builds a relationship between a and b in canonical order.
// parentID names the parent of a parent-child relationship and must be zero
// for the other categories.
func NewRelationship(a, b int64, category Category, parentID int64) (*Relationship, error) {
	if a == b {
		return nil, ErrSelfRelationship
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("invalid relationship category: %q", category)
	}

	low, high := a, b
	if low > high {
		low, high = high, low
	}

	rel := &Relationship{
		LowID:    low,
		HighID:   high,
		Category: category,
	}

	switch {
	case category == CategoryParentChild && parentID == low:
		rel.ParentSide = ParentSideLow
	case category == CategoryParentChild && parentID == high:
		rel.ParentSide = ParentSideHigh
	case category == CategoryParentChild:
		return nil, fmt.Errorf("parent %d is not part of the relationship %d-%d", parentID, a, b)
	case parentID != 0:
		return nil, fmt.Errorf("parent given for %s relationship", category)
	}

	return rel, nil
}

// Involves reports whether id is one of the two persons.
func (r *Relationship) Involves(id int64) bool {
	return r.LowID == id || r.HighID == id
}

// Other returns the person on the opposite end from id.
func (r *Relationship) Other(id int64) int64 {
	if r.LowID == id {
		return r.HighID
	}
	return r.LowID
}

// ParentID returns the parent of a parent-child relationship, or 0.
func (r *Relationship) ParentID() int64 {
	switch r.ParentSide {
	case ParentSideLow:
		return r.LowID
	case ParentSideHigh:
		return r.HighID
	default:
		return 0
	}
}

// ChildID returns the child of a parent-child relationship, or 0.
func (r *Relationship) ChildID() int64 {
	switch r.ParentSide {
	case ParentSideLow:
		return r.HighID
	case ParentSideHigh:
		return r.LowID
	default:
		return 0
	}
}

// ParentFor returns the parent when id is the child of a parent-child relationship.
func (r *Relationship) ParentFor(id int64) (int64, bool) {
	if r.Category != CategoryParentChild || r.ChildID() != id {
		return 0, false
	}
	return r.ParentID(), true
}

// ChildFor returns the child when id is the parent of a parent-child relationship.
func (r *Relationship) ChildFor(id int64) (int64, bool) {
	if r.Category != CategoryParentChild || r.ParentID() != id {
		return 0, false
	}
	return r.ChildID(), true
}
