// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
)

// Embedder is a mock implementation of ports.Embedder.
// EmbedFunc, when set, computes the embedding of each text.
type Embedder struct {
	EmbeddingResult []float32
	EmbedFunc       func(text string) []float32
	Err             error

	mu             sync.Mutex
	BatchCallCount int
	BatchSizes     []int
}

// Embed returns the configured embedding or error.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.embed(text), nil
}

// EmbedBatch returns embeddings for multiple texts.
func (m *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.BatchCallCount++
	m.BatchSizes = append(m.BatchSizes, len(texts))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.embed(text)
	}
	return result, nil
}

func (m *Embedder) embed(text string) []float32 {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(text)
	}
	return m.EmbeddingResult
}
