package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/mocks"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

const coupleGEDCOM = `0 HEAD
1 CHAR UTF-8
0 @I1@ INDI
1 NAME Erik /Svensson/
1 SEX M
1 BIRT
2 DATE ABT 1850
2 PLAC Lund
0 @I2@ INDI
1 NAME Anna /Larsdotter/
1 SEX F
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 MARR
2 DATE 12 MAR 1875
0 TRLR
`

const familyGEDCOM = `0 HEAD
0 @I1@ INDI
1 NAME Erik /Svensson/
0 @I2@ INDI
1 NAME Anna /Larsdotter/
0 @I3@ INDI
1 NAME Karl /Svensson/
0 @I4@ INDI
1 NAME Maria /Svensson/
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 CHIL @I3@
1 CHIL @I4@
0 TRLR
`

func parseGEDCOM(t *testing.T, text string) *parsers.Document {
	t.Helper()
	doc, err := (&parsers.GEDCOMParser{}).Parse(strings.NewReader(text))
	require.NoError(t, err)
	return doc
}

func newTestImportService(store *mocks.GraphStore) *ImportService {
	return NewImportService(store, NewGraphGuard(), nil)
}

func TestImportService_Import_Couple(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)

	report, err := svc.Import(context.Background(), parseGEDCOM(t, coupleGEDCOM), ImportOptions{FileName: "couple.ged"})

	require.NoError(t, err)
	assert.Equal(t, 3, report.RecordsProcessed)
	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 2, report.PersonsCreated)
	assert.Equal(t, 1, report.RelationshipsCreated)
	assert.Equal(t, 0, report.UnresolvedReferences)
	assert.Equal(t, 0, report.DuplicatesSkipped)
	assert.False(t, report.Partial)
	assert.Empty(t, report.Issues)
	assert.NotEmpty(t, report.RunID)

	ctx := context.Background()
	erik, err := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I1@")
	require.NoError(t, err)
	require.NotNil(t, erik)
	assert.Equal(t, "erik_svensson", erik.DirectoryName)
	assert.Equal(t, entities.SexMale, erik.Sex)
	assert.Equal(t, entities.QualifierAbout, erik.Birth.Qualifier)
	assert.Equal(t, 1850, erik.Birth.Value.Year)
	assert.Equal(t, "Lund", erik.BirthPlace)

	anna, err := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I2@")
	require.NoError(t, err)
	require.NotNil(t, anna)

	rel, err := store.RelationshipBetween(ctx, erik.ID, anna.ID)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, entities.CategorySpouse, rel.Category)
	assert.Less(t, rel.LowID, rel.HighID)
	assert.Equal(t, entities.FullDate(1875, 3, 12), rel.Date.Value)

	runs, err := store.ListImportRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, entities.ImportCompleted, runs[0].Status)
	assert.Equal(t, "couple.ged", runs[0].FileName)
	assert.Equal(t, 2, runs[0].PersonsCreated)
}

func TestImportService_Import_ParentChildDirection(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()

	report, err := svc.Import(ctx, parseGEDCOM(t, familyGEDCOM), ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 4, report.PersonsCreated)
	assert.Equal(t, 5, report.RelationshipsCreated)

	erik, _ := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I1@")
	karl, _ := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I3@")
	rel, err := store.RelationshipBetween(ctx, karl.ID, erik.ID)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, entities.CategoryParentChild, rel.Category)
	assert.Equal(t, erik.ID, rel.ParentID())
	assert.Equal(t, karl.ID, rel.ChildID())

	karl2, _ := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I4@")
	exists, err := store.Exists(ctx, karl.ID, karl2.ID)
	require.NoError(t, err)
	assert.False(t, exists, "siblings are inferred, not stored")
}

func TestImportService_Import_Idempotent(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()
	doc := parseGEDCOM(t, familyGEDCOM)

	first, err := svc.Import(ctx, doc, ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, first.PersonsCreated)

	second, err := svc.Import(ctx, doc, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 0, second.PersonsCreated)
	assert.Equal(t, 0, second.RelationshipsCreated)
	assert.Equal(t, 4+5, second.DuplicatesSkipped)
	assert.Empty(t, second.Issues)

	persons, _ := store.CountPersons(ctx)
	rels, _ := store.CountRelationships(ctx)
	assert.Equal(t, 4, persons)
	assert.Equal(t, 5, rels)
}

func TestImportService_Import_SourcesAreSeparateNamespaces(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()
	doc := parseGEDCOM(t, coupleGEDCOM)

	_, err := svc.Import(ctx, doc, ImportOptions{Source: "first"})
	require.NoError(t, err)
	report, err := svc.Import(ctx, doc, ImportOptions{Source: "second"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.PersonsCreated)
	p, err := store.FindPersonByExternalID(ctx, "second", "@I1@")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "erik_svensson_2", p.DirectoryName)
}

func TestImportService_Import_DuplicateDefinitionFirstWins(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()
	doc := parseGEDCOM(t, `0 HEAD
0 @I1@ INDI
1 NAME Erik /Svensson/
0 @I1@ INDI
1 NAME Erik /Andersson/
0 TRLR
`)

	report, err := svc.Import(ctx, doc, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.PersonsCreated)
	assert.Equal(t, 1, report.DuplicatesSkipped)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueDuplicateIndividual, report.Issues[0].Kind)
	assert.Equal(t, "@I1@", report.Issues[0].Ref)
	assert.Equal(t, 4, report.Issues[0].Line)

	p, _ := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I1@")
	assert.Equal(t, "Svensson", p.Surname)
}

func TestImportService_Import_UnresolvedReference(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()
	doc := parseGEDCOM(t, `0 HEAD
0 @I1@ INDI
1 NAME Erik /Svensson/
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I9@
1 CHIL @I9@
0 TRLR
`)

	report, err := svc.Import(ctx, doc, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.PersonsCreated)
	assert.Equal(t, 1, report.UnresolvedReferences, "a reference resolves to one placeholder")
	assert.Equal(t, 1, report.RelationshipsCreated)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, IssueUnresolvedReference, report.Issues[0].Kind)
	assert.Equal(t, "@I9@", report.Issues[0].Ref)

	placeholder, err := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I9@")
	require.NoError(t, err)
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.Placeholder)
	assert.Equal(t, "unknown_i9", placeholder.DirectoryName)
}

func TestImportService_Import_FillsPlaceholderLater(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()

	_, err := svc.Import(ctx, parseGEDCOM(t, `0 HEAD
0 @I1@ INDI
1 NAME Erik /Svensson/
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
0 TRLR
`), ImportOptions{})
	require.NoError(t, err)

	report, err := svc.Import(ctx, parseGEDCOM(t, coupleGEDCOM), ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 0, report.PersonsCreated)
	assert.Equal(t, 1, report.PlaceholdersFilled)
	assert.Equal(t, 0, report.RelationshipsCreated)

	anna, _ := store.FindPersonByExternalID(ctx, DefaultImportSource, "@I2@")
	require.NotNil(t, anna)
	assert.False(t, anna.Placeholder)
	assert.Equal(t, "Anna", anna.GivenName)
	assert.Equal(t, "unknown_i2", anna.DirectoryName, "directory names never change")
	count, _ := store.CountPersons(ctx)
	assert.Equal(t, 2, count)
}

func TestImportService_Import_RelationshipIssues(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	doc := parseGEDCOM(t, `0 HEAD
0 @I1@ INDI
1 NAME Erik /Svensson/
0 @I2@ INDI
1 NAME Anna /Larsdotter/
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I1@
0 @F2@ FAM
1 HUSB @I1@
1 WIFE @I2@
0 @F3@ FAM
1 HUSB @I1@
1 CHIL @I2@
0 TRLR
`)

	report, err := svc.Import(context.Background(), doc, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.RelationshipsCreated)
	assert.Equal(t, 1, report.DuplicatesSkipped)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, IssueSelfRelationship, report.Issues[0].Kind)
	assert.Equal(t, "@F1@", report.Issues[0].Ref)
	assert.Equal(t, IssueConflictingRelationship, report.Issues[1].Kind)
	assert.Equal(t, "@F3@", report.Issues[1].Ref)
}

func TestImportService_Import_DryRun(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()

	report, err := svc.Import(ctx, parseGEDCOM(t, familyGEDCOM), ImportOptions{DryRun: true})

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 4, report.PersonsCreated)
	assert.Equal(t, 5, report.RelationshipsCreated)

	count, _ := store.CountPersons(ctx)
	assert.Equal(t, 0, count)
	runs, _ := store.ListImportRuns(ctx, 10)
	assert.Empty(t, runs)
}

func TestImportService_Import_StoreErrorRollsBack(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()
	doc := parseGEDCOM(t, familyGEDCOM)

	failing := &failingWriterStore{GraphStore: store, failAfter: 2, err: errors.New("disk full")}
	svc.store = failing

	report, err := svc.Import(ctx, doc, ImportOptions{})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "disk full")
	count, _ := store.CountPersons(ctx)
	assert.Equal(t, 0, count)
}

func TestImportService_Import_Cancelled(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.store = &failingWriterStore{GraphStore: store, failAfter: 2, onLimit: cancel}

	report, err := svc.Import(ctx, parseGEDCOM(t, familyGEDCOM), ImportOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImportCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Partial)
	assert.Equal(t, 2, report.RecordsProcessed)
	assert.Equal(t, 2, report.PersonsCreated)

	count, _ := store.CountPersons(context.Background())
	assert.Equal(t, 2, count, "the processed prefix is committed")
	runs, _ := store.ListImportRuns(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.Equal(t, entities.ImportCancelled, runs[0].Status)
}

func TestImportService_Import_Progress(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	progress := make(chan ImportProgress)

	var snapshots []ImportProgress
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := range progress {
			snapshots = append(snapshots, p)
		}
	}()

	report, err := svc.Import(context.Background(), parseGEDCOM(t, familyGEDCOM), ImportOptions{
		Progress:      progress,
		ProgressEvery: 2,
	})
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 2, snapshots[0].RecordsProcessed)
	assert.Equal(t, 4, snapshots[1].RecordsProcessed)
	assert.Equal(t, report.Progress(), snapshots[2])
	assert.Equal(t, 5, snapshots[2].TotalRecords)
}

func TestImportService_Import_CancelledSendsFinalProgress(t *testing.T) {
	for range 20 {
		store := mocks.NewGraphStore()
		svc := newTestImportService(store)
		ctx, cancel := context.WithCancel(context.Background())
		svc.store = &failingWriterStore{GraphStore: store, failAfter: 2, onLimit: cancel}

		progress := make(chan ImportProgress)
		var snapshots []ImportProgress
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range progress {
				snapshots = append(snapshots, p)
			}
		}()

		report, err := svc.Import(ctx, parseGEDCOM(t, familyGEDCOM), ImportOptions{
			Progress:      progress,
			ProgressEvery: 100,
		})
		wg.Wait()
		cancel()

		require.ErrorIs(t, err, ErrImportCancelled)
		require.NotEmpty(t, snapshots)
		last := snapshots[len(snapshots)-1]
		assert.Equal(t, report.Progress(), last)
		assert.Equal(t, 2, last.PersonsCreated)
	}
}

func TestImportService_Import_ClosesProgressOnError(t *testing.T) {
	store := mocks.NewGraphStore()
	store.Err = errors.New("db down")
	svc := newTestImportService(store)
	progress := make(chan ImportProgress, 10)

	_, err := svc.Import(context.Background(), parseGEDCOM(t, coupleGEDCOM), ImportOptions{Progress: progress})

	require.Error(t, err)
	_, open := <-progress
	assert.False(t, open)
}

func TestImportService_Preview(t *testing.T) {
	store := mocks.NewGraphStore()
	svc := newTestImportService(store)
	ctx := context.Background()

	_, err := svc.Import(ctx, parseGEDCOM(t, coupleGEDCOM), ImportOptions{})
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, parseGEDCOM(t, familyGEDCOM), "")

	require.NoError(t, err)
	assert.Equal(t, 4, preview.Individuals)
	assert.Equal(t, 1, preview.Families)
	assert.Equal(t, 2, preview.ExistingPersons)
	assert.Equal(t, 2, preview.NewPersons)
	assert.Equal(t, 5, preview.EstimatedRelationships)
	require.Len(t, preview.Samples, 4)
	assert.Equal(t, "Erik Svensson", preview.Samples[0].Name)
	assert.True(t, preview.Samples[0].Exists)
	assert.False(t, preview.Samples[2].Exists)

	count, _ := store.CountPersons(ctx)
	assert.Equal(t, 2, count, "preview does not write")
}

// failingWriterStore wraps the transaction writer so CreatePerson fails, or
// calls onLimit, after failAfter successful calls.
type failingWriterStore struct {
	*mocks.GraphStore
	failAfter int
	err       error
	onLimit   func()
}

func (s *failingWriterStore) WithinTx(ctx context.Context, fn func(ports.GraphWriter) error) error {
	return s.GraphStore.WithinTx(ctx, func(w ports.GraphWriter) error {
		return fn(&failingWriter{GraphWriter: w, store: s})
	})
}

type failingWriter struct {
	ports.GraphWriter
	store *failingWriterStore
	calls int
}

func (w *failingWriter) CreatePerson(ctx context.Context, p *entities.Person) error {
	if w.calls == w.store.failAfter && w.store.err != nil {
		return w.store.err
	}
	if err := w.GraphWriter.CreatePerson(ctx, p); err != nil {
		return err
	}
	w.calls++
	if w.calls == w.store.failAfter && w.store.onLimit != nil {
		w.store.onLimit()
	}
	return nil
}
