package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

const sampleGEDCOM = `0 HEAD
1 SOUR test
1 CHAR UTF-8
0 @I1@ INDI
1 NAME Erik /Svensson/
1 SEX M
0 @I2@ INDI
1 NAME Anna /Larsdotter/
1 SEX F
0 @I3@ INDI
1 NAME Karl /Svensson/
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 CHIL @I3@
0 TRLR
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportHandler_Handle_GEDCOMFile(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, svc.search)
	path := writeTempFile(t, "family.ged", sampleGEDCOM)

	var mu sync.Mutex
	var snapshots []services.ImportProgress
	result, err := handler.Handle(context.Background(), path, ImportOptions{
		Format:        "auto",
		ProgressEvery: 1,
		OnProgress: func(p services.ImportProgress) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, p)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Report.PersonsCreated)
	assert.Equal(t, 3, result.Report.RelationshipsCreated)
	assert.Nil(t, result.Index)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 4)
	assert.Equal(t, 4, snapshots[3].RecordsProcessed)

	runs, err := svc.store.ListImportRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "family.ged", runs[0].FileName)
}

func TestImportHandler_Handle_JSONFile(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, nil)
	path := writeTempFile(t, "family.json", `{
		"individuals": [
			{"xref": "@I1@", "given_name": "Erik", "surname": "Svensson"},
			{"xref": "@I2@", "given_name": "Anna", "surname": "Larsdotter"}
		],
		"families": [{"xref": "@F1@", "husband": "@I1@", "wife": "@I2@"}]
	}`)

	result, err := handler.Handle(context.Background(), path, ImportOptions{Source: "json"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Report.PersonsCreated)
	assert.Equal(t, 1, result.Report.RelationshipsCreated)
	assert.Equal(t, "json", result.Report.Source)
}

func TestImportHandler_Handle_WithIndex(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, svc.search)
	path := writeTempFile(t, "family.ged", sampleGEDCOM)

	result, err := handler.Handle(context.Background(), path, ImportOptions{Index: true})

	require.NoError(t, err)
	require.NotNil(t, result.Index)
	assert.Equal(t, 3, result.Index.Indexed)
	assert.Len(t, svc.index.Docs, 3)
}

func TestImportHandler_Handle_DryRunSkipsIndex(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, svc.search)
	path := writeTempFile(t, "family.ged", sampleGEDCOM)

	result, err := handler.Handle(context.Background(), path, ImportOptions{DryRun: true, Index: true})

	require.NoError(t, err)
	assert.True(t, result.Report.DryRun)
	assert.Nil(t, result.Index)
	count, _ := svc.store.CountPersons(context.Background())
	assert.Zero(t, count)
}

func TestImportHandler_Handle_Errors(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, nil)

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeTempFile(t, "family.txt", sampleGEDCOM)
		_, err := handler.Handle(context.Background(), path, ImportOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), "unsupported format")
	})

	t.Run("explicit format overrides extension", func(t *testing.T) {
		path := writeTempFile(t, "family.txt", sampleGEDCOM)
		result, err := handler.Handle(context.Background(), path, ImportOptions{Format: "gedcom", Source: "explicit"})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Report.PersonsCreated)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := handler.Handle(context.Background(), filepath.Join(t.TempDir(), "nope.ged"), ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening file")
	})

	t.Run("malformed record", func(t *testing.T) {
		path := writeTempFile(t, "broken.ged", "0 HEAD\n0 @I1@ INDI\nNAME without level\n")
		_, err := handler.Handle(context.Background(), path, ImportOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, parsers.ErrMalformedRecord)
		assert.ErrorIs(t, err, ErrInvalidInput)
		var malformed *parsers.MalformedRecordError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, 3, malformed.Line)
	})
}

func TestImportHandler_HandleReader_Cancelled(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := handler.HandleReader(ctx, &parsers.GEDCOMParser{}, strings.NewReader(sampleGEDCOM), "family.ged", ImportOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrImportCancelled)
	require.NotNil(t, result)
	assert.True(t, result.Report.Partial)
	assert.Zero(t, result.Report.RecordsProcessed)
}

func TestImportHandler_HandlePreview(t *testing.T) {
	svc := newTestServices()
	handler := NewImportHandler(svc.imports, nil)
	path := writeTempFile(t, "family.ged", sampleGEDCOM)

	preview, err := handler.HandlePreview(context.Background(), path, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 3, preview.Individuals)
	assert.Equal(t, 3, preview.NewPersons)
	assert.Equal(t, 3, preview.EstimatedRelationships)
	count, _ := svc.store.CountPersons(context.Background())
	assert.Zero(t, count)
}
