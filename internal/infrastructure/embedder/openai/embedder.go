// Package openai provides an Embedder implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/carleson/genlib/internal/infrastructure/config"
)

// VectorSize is the dimension of text-embedding-3-small vectors.
const VectorSize = 1536

// defaultBatchSize bounds the inputs of one embeddings request.
const defaultBatchSize = 100

// Embedder implements the Embedder interface using OpenAI.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	batchSize int
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return newEmbedder(openai.NewClient(cfg.APIKey), cfg), nil
}

// NewEmbedderWithBaseURL creates an embedder for an OpenAI-compatible endpoint.
func NewEmbedderWithBaseURL(cfg config.EmbedderConfig, baseURL string) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	return newEmbedder(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newEmbedder(client *openai.Client, cfg config.EmbedderConfig) *Embedder {
	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Embedder{
		client:    client,
		model:     model,
		batchSize: batchSize,
	}
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	return embeddings[0], nil
}

// EmbedBatch generates vector embeddings for multiple texts, in input order.
// Inputs larger than the batch size are split over several requests.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: e.model,
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("creating embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("creating embeddings: got %d embeddings for %d inputs", len(resp.Data), end-start)
		}

		for _, data := range resp.Data {
			if data.Index < 0 || data.Index >= end-start {
				return nil, fmt.Errorf("creating embeddings: index %d out of range", data.Index)
			}
			embeddings[start+data.Index] = data.Embedding
		}
	}

	return embeddings, nil
}
