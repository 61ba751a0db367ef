package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		expected bool
	}{
		{name: "parent_child is valid", category: CategoryParentChild, expected: true},
		{name: "spouse is valid", category: CategorySpouse, expected: true},
		{name: "sibling is valid", category: CategorySibling, expected: true},
		{name: "empty is invalid", category: "", expected: false},
		{name: "unknown is invalid", category: "cousin", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.IsValid())
		})
	}
}

func TestNewRelationship_CanonicalOrder(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		category Category
		parentID int64
		side     ParentSide
	}{
		{name: "spouse ascending", a: 1, b: 2, category: CategorySpouse},
		{name: "spouse descending", a: 9, b: 3, category: CategorySpouse},
		{name: "sibling descending", a: 5, b: 4, category: CategorySibling},
		{name: "parent is low", a: 2, b: 7, category: CategoryParentChild, parentID: 2, side: ParentSideLow},
		{name: "parent is high", a: 7, b: 2, category: CategoryParentChild, parentID: 7, side: ParentSideHigh},
		{name: "child passed first", a: 2, b: 7, category: CategoryParentChild, parentID: 7, side: ParentSideHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := NewRelationship(tt.a, tt.b, tt.category, tt.parentID)
			require.NoError(t, err)
			assert.Less(t, rel.LowID, rel.HighID)
			assert.Equal(t, min(tt.a, tt.b), rel.LowID)
			assert.Equal(t, max(tt.a, tt.b), rel.HighID)
			assert.Equal(t, tt.side, rel.ParentSide)
			if tt.category == CategoryParentChild {
				assert.Equal(t, tt.parentID, rel.ParentID())
				assert.Equal(t, tt.a+tt.b-tt.parentID, rel.ChildID())
			}
		})
	}
}

func TestNewRelationship_Errors(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		category Category
		parentID int64
		errMsg   string
	}{
		{name: "self", a: 3, b: 3, category: CategorySpouse, errMsg: "themselves"},
		{name: "invalid category", a: 1, b: 2, category: "cousin", errMsg: "invalid relationship category"},
		{name: "parent outside pair", a: 1, b: 2, category: CategoryParentChild, parentID: 5, errMsg: "not part of"},
		{name: "missing parent", a: 1, b: 2, category: CategoryParentChild, errMsg: "not part of"},
		{name: "parent on spouse", a: 1, b: 2, category: CategorySpouse, parentID: 1, errMsg: "parent given"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := NewRelationship(tt.a, tt.b, tt.category, tt.parentID)
			require.Error(t, err)
			assert.Nil(t, rel)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := NewRelationship(4, 4, CategoryParentChild, 4)
	assert.ErrorIs(t, err, ErrSelfRelationship)
}

func TestRelationship_Navigation(t *testing.T) {
	rel, err := NewRelationship(10, 4, CategoryParentChild, 10)
	require.NoError(t, err)

	assert.True(t, rel.Involves(4))
	assert.True(t, rel.Involves(10))
	assert.False(t, rel.Involves(5))
	assert.Equal(t, int64(10), rel.Other(4))
	assert.Equal(t, int64(4), rel.Other(10))

	parent, ok := rel.ParentFor(4)
	assert.True(t, ok)
	assert.Equal(t, int64(10), parent)
	_, ok = rel.ParentFor(10)
	assert.False(t, ok)

	child, ok := rel.ChildFor(10)
	assert.True(t, ok)
	assert.Equal(t, int64(4), child)
	_, ok = rel.ChildFor(4)
	assert.False(t, ok)

	spouse, err := NewRelationship(1, 2, CategorySpouse, 0)
	require.NoError(t, err)
	_, ok = spouse.ParentFor(1)
	assert.False(t, ok)
	assert.Zero(t, spouse.ParentID())
	assert.Zero(t, spouse.ChildID())
}
