// Package qdrant provides a PersonIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/infrastructure/config"
)

const (
	payloadPersonID      = "person_id"
	payloadDirectoryName = "directory_name"
	payloadText          = "text"
)

// Repository implements ports.PersonIndex using one Qdrant collection per
// archive. Points are keyed by person ID.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository connects to Qdrant for the given collection.
func NewRepository(cfg config.QdrantConfig, collection string) (*Repository, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: collection,
		conn:       conn,
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Collection returns the collection name.
func (r *Repository) Collection() string {
	return r.collection
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and every indexed person.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Upsert stores or replaces the documents. Re-indexing a person overwrites
// its point.
func (r *Repository) Upsert(ctx context.Context, docs []ports.PersonDocument) error {
	if len(docs) == 0 {
		return nil
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         documentsToPoints(docs),
		Wait:           pb.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search returns the persons closest to the embedding, best first.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]ports.PersonMatch, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToMatches(resp.Result), nil
}

// Count returns the number of indexed persons.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

func documentsToPoints(docs []ports.PersonDocument) []*pb.PointStruct {
	points := make([]*pb.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(doc.PersonID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				payloadPersonID:      {Kind: &pb.Value_IntegerValue{IntegerValue: doc.PersonID}},
				payloadDirectoryName: {Kind: &pb.Value_StringValue{StringValue: doc.DirectoryName}},
				payloadText:          {Kind: &pb.Value_StringValue{StringValue: doc.Text}},
			},
		})
	}
	return points
}

// scoredPointsToMatches reads the person ID from the payload and falls back
// to the numeric point ID.
func scoredPointsToMatches(points []*pb.ScoredPoint) []ports.PersonMatch {
	matches := make([]ports.PersonMatch, 0, len(points))
	for _, point := range points {
		id := getIntValue(point.Payload, payloadPersonID)
		if id == 0 {
			id = int64(point.GetId().GetNum())
		}
		if id == 0 {
			continue
		}
		matches = append(matches, ports.PersonMatch{PersonID: id, Score: point.Score})
	}
	return matches
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
