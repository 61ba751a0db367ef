package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/services"
)

func person(id int64, given, surname string, born int) *entities.Person {
	p := &entities.Person{ID: id, GivenName: given, Surname: surname}
	if born > 0 {
		p.Birth = entities.ExactDate(entities.YearOnly(born))
	}
	return p
}

func TestRenderTree(t *testing.T) {
	erik := person(1, "Erik", "Svensson", 1820)
	anna := person(2, "Anna", "Larsdotter", 0)
	karl := person(3, "Karl", "Svensson", 1850)

	tree := &entities.FamilyTree{
		RootID:         3,
		MaxGenerations: 2,
		Nodes: []entities.TreeNode{
			{PersonID: 1, Person: erik, Generation: -1, Role: entities.RoleAncestor},
			{PersonID: 2, Person: anna, Generation: -1, Lateral: 1, Role: entities.RoleAncestor},
			{PersonID: 3, Person: karl, Generation: 0, Role: entities.RoleRoot},
		},
		Links: []entities.TreeLink{
			{From: 1, To: 3, Kind: entities.LinkParentChild},
			{From: 2, To: 3, Kind: entities.LinkParentChild},
			{From: 1, To: 2, Kind: entities.LinkSpousal},
		},
		Anomalies: []entities.TreeAnomaly{
			{PersonID: 1, ViaID: 3, Kind: entities.AnomalyGenerationConflict},
		},
	}

	var buf bytes.Buffer
	renderTree(&buf, tree)
	out := buf.String()

	assert.Contains(t, out, "Family tree of Karl Svensson (1850-) (2 generations)")
	assert.Contains(t, out, "Parents")
	assert.Contains(t, out, "Root generation")
	assert.Contains(t, out, "m. Anna Larsdotter")
	assert.Contains(t, out, "m. Erik Svensson (1820-)")
	assert.Contains(t, out, "generation_conflict: Erik Svensson (1820-) reached again via Karl Svensson (1850-)")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Parents")), bytes.Index(buf.Bytes(), []byte("Root generation")))
}

func TestRenderTree_MissingRoot(t *testing.T) {
	var buf bytes.Buffer
	renderTree(&buf, &entities.FamilyTree{RootID: 9})
	assert.Empty(t, buf.String())
}

func TestGenerationLabel(t *testing.T) {
	tests := []struct {
		gen  int
		want string
	}{
		{-4, "Ancestors, 4 generations up"},
		{-2, "Grandparents"},
		{0, "Root generation"},
		{1, "Children"},
		{3, "Descendants, 3 generations down"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, generationLabel(tt.gen))
	}
}

func TestPrintImportReport(t *testing.T) {
	tests := []struct {
		name     string
		report   *services.ImportReport
		contains []string
		excludes []string
	}{
		{
			name:     "complete",
			report:   &services.ImportReport{TotalRecords: 4, RecordsProcessed: 4, PersonsCreated: 3, RelationshipsCreated: 3},
			contains: []string{"Import complete:", "4 of 4"},
			excludes: []string{"Placeholders filled", "Issues"},
		},
		{
			name:     "dry run",
			report:   &services.ImportReport{DryRun: true, PlaceholdersFilled: 1},
			contains: []string{"Dry run, nothing was saved:", "Placeholders filled:   1"},
		},
		{
			name: "partial with issues",
			report: &services.ImportReport{
				Partial: true,
				Issues:  []services.ImportIssue{{Line: 7, Kind: services.IssueUnresolvedReference, Ref: "@I9@", Message: "placeholder created"}},
			},
			contains: []string{"Import cancelled, partial result:", "Issues (1):", "line 7:", "@I9@: placeholder created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printImportReport(&buf, tt.report)
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}
