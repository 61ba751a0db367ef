package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/domain/services"
)

func TestRelationshipHandler_HandleCreate(t *testing.T) {
	tests := []struct {
		name       string
		relation   string
		wantCat    entities.Category
		wantParent string // directory name of the parent, if any
		wantErr    error
		errContain string
	}{
		{name: "parent", relation: "parent", wantCat: entities.CategoryParentChild, wantParent: "erik_svensson"},
		{name: "father alias", relation: "father", wantCat: entities.CategoryParentChild, wantParent: "erik_svensson"},
		{name: "child", relation: "child", wantCat: entities.CategoryParentChild, wantParent: "karl_svensson"},
		{name: "spouse", relation: "wife", wantCat: entities.CategorySpouse},
		{name: "sibling", relation: "sibling", wantCat: entities.CategorySibling},
		{name: "unknown relation", relation: "cousin", errContain: "cousin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices()
			karl := svc.store.AddPerson("Karl", "Svensson")
			erik := svc.store.AddPerson("Erik", "Svensson")
			handler := NewRelationshipHandler(svc.relationships, svc.persons)

			rel, err := handler.HandleCreate(context.Background(), "karl_svensson", tt.relation, "erik_svensson")

			if tt.errContain != "" {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Contains(t, err.Error(), tt.errContain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, rel.Category)
			assert.Equal(t, karl.ID, rel.LowID)
			assert.Equal(t, erik.ID, rel.HighID)

			switch tt.wantParent {
			case "erik_svensson":
				assert.Equal(t, entities.ParentSideHigh, rel.ParentSide)
			case "karl_svensson":
				assert.Equal(t, entities.ParentSideLow, rel.ParentSide)
			default:
				assert.Equal(t, entities.ParentSideNone, rel.ParentSide)
			}
		})
	}
}

func TestRelationshipHandler_HandleCreate_Errors(t *testing.T) {
	svc := newTestServices()
	karl := svc.store.AddPerson("Karl", "Svensson")
	erik := svc.store.AddPerson("Erik", "Svensson")
	svc.store.Relate(karl.ID, erik.ID, entities.CategoryParentChild, erik.ID)
	handler := NewRelationshipHandler(svc.relationships, svc.persons)
	ctx := context.Background()

	_, err := handler.HandleCreate(ctx, "karl_svensson", "spouse", "erik_svensson")
	assert.ErrorIs(t, err, ports.ErrDuplicateRelationship)

	_, err = handler.HandleCreate(ctx, "karl_svensson", "sibling", "karl_svensson")
	assert.ErrorIs(t, err, ports.ErrSelfRelationship)

	_, err = handler.HandleCreate(ctx, "karl_svensson", "spouse", "nobody")
	assert.ErrorIs(t, err, ports.ErrPersonNotFound)

	_, err = handler.HandleCreate(ctx, "", "spouse", "karl_svensson")
	assert.ErrorIs(t, err, services.ErrInvalidPersonRef)
}

func TestRelationshipHandler_HandleList(t *testing.T) {
	svc := newTestServices()
	erik := svc.store.AddPerson("Erik", "Svensson")
	anna := svc.store.AddPerson("Anna", "Larsdotter")
	karl := svc.store.AddPerson("Karl", "Svensson")
	svc.store.Relate(erik.ID, anna.ID, entities.CategorySpouse, 0)
	svc.store.Relate(erik.ID, karl.ID, entities.CategoryParentChild, erik.ID)
	handler := NewRelationshipHandler(svc.relationships, svc.persons)
	ctx := context.Background()

	t.Run("all categories", func(t *testing.T) {
		result, err := handler.HandleList(ctx, "erik_svensson", ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, erik.ID, result.Person.ID)
		require.Len(t, result.Relatives, 2)
		assert.Equal(t, services.KinshipSpouse, result.Relatives[0].Kinship)
		assert.Equal(t, anna.ID, result.Relatives[0].Person.ID)
		assert.Equal(t, services.KinshipChild, result.Relatives[1].Kinship)
		assert.Equal(t, karl.ID, result.Relatives[1].Person.ID)
	})

	t.Run("filtered by relation word", func(t *testing.T) {
		result, err := handler.HandleList(ctx, "erik_svensson", ListOptions{Category: "children"})
		require.NoError(t, err)
		require.Len(t, result.Relatives, 1)
		assert.Equal(t, karl.ID, result.Relatives[0].Person.ID)
	})

	t.Run("no relatives gives empty slice", func(t *testing.T) {
		svc.store.AddPerson("Lisa", "Berg")
		result, err := handler.HandleList(ctx, "lisa_berg", ListOptions{Category: "sibling"})
		require.NoError(t, err)
		assert.NotNil(t, result.Relatives)
		assert.Empty(t, result.Relatives)
	})

	t.Run("invalid category", func(t *testing.T) {
		_, err := handler.HandleList(ctx, "erik_svensson", ListOptions{Category: "cousin"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), "invalid category")
	})
}

func TestRelationshipHandler_HandleDelete(t *testing.T) {
	svc := newTestServices()
	erik := svc.store.AddPerson("Erik", "Svensson")
	anna := svc.store.AddPerson("Anna", "Larsdotter")
	rel := svc.store.Relate(erik.ID, anna.ID, entities.CategorySpouse, 0)
	handler := NewRelationshipHandler(svc.relationships, svc.persons)
	ctx := context.Background()

	require.NoError(t, handler.HandleDelete(ctx, rel.ID))
	exists, err := svc.relationships.Exists(ctx, erik.ID, anna.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, handler.HandleDelete(ctx, rel.ID), ports.ErrRelationshipNotFound)
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    entities.Category
		wantErr bool
	}{
		{"parent_child", entities.CategoryParentChild, false},
		{"Parents", entities.CategoryParentChild, false},
		{" child ", entities.CategoryParentChild, false},
		{"spouses", entities.CategorySpouse, false},
		{"sibling", entities.CategorySibling, false},
		{"cousin", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
