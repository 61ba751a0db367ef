package qdrant

import (
	"context"
	"os"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/infrastructure/config"
)

func TestNewRepository_RequiresCollection(t *testing.T) {
	_, err := NewRepository(config.Default().Qdrant, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection name is required")
}

func TestDocumentsToPoints(t *testing.T) {
	points := documentsToPoints([]ports.PersonDocument{
		{PersonID: 7, DirectoryName: "anna_svensson", Text: "Anna Svensson, female", Embedding: []float32{0.1, 0.2}},
	})

	require.Len(t, points, 1)
	assert.Equal(t, uint64(7), points[0].GetId().GetNum())
	assert.Equal(t, []float32{0.1, 0.2}, points[0].GetVectors().GetVector().GetData())
	assert.Equal(t, int64(7), points[0].Payload[payloadPersonID].GetIntegerValue())
	assert.Equal(t, "anna_svensson", points[0].Payload[payloadDirectoryName].GetStringValue())
	assert.Equal(t, "Anna Svensson, female", points[0].Payload[payloadText].GetStringValue())
}

func TestScoredPointsToMatches(t *testing.T) {
	points := []*pb.ScoredPoint{
		{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 3}},
			Payload: map[string]*pb.Value{payloadPersonID: {Kind: &pb.Value_IntegerValue{IntegerValue: 3}}},
			Score:   0.9,
		},
		{
			Id:    &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 5}},
			Score: 0.5,
		},
		{
			Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "not-a-person"}},
			Score: 0.1,
		},
	}

	matches := scoredPointsToMatches(points)

	assert.Equal(t, []ports.PersonMatch{
		{PersonID: 3, Score: 0.9},
		{PersonID: 5, Score: 0.5},
	}, matches)
}

func TestRepository_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("set INTEGRATION_TEST=1 to run against a local Qdrant")
	}

	ctx := context.Background()
	repo, err := NewRepository(config.Default().Qdrant, "genlib_integration_test")
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.EnsureCollection(ctx, 3))
	defer func() { _ = repo.DeleteCollection(ctx) }()

	require.NoError(t, repo.Upsert(ctx, []ports.PersonDocument{
		{PersonID: 1, DirectoryName: "erik_svensson", Text: "Erik", Embedding: []float32{1, 0, 0}},
		{PersonID: 2, DirectoryName: "anna_larsdotter", Text: "Anna", Embedding: []float32{0, 1, 0}},
	}))

	matches, err := repo.Search(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(1), matches[0].PersonID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
