package mocks

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/carleson/genlib/internal/domain/ports"
)

// PersonIndex is an in-memory mock of ports.PersonIndex using cosine similarity.
type PersonIndex struct {
	mu   sync.Mutex
	Docs map[int64]ports.PersonDocument
	Err  error

	// Collection errors (separate from Err for fine-grained control)
	EnsureCollectionErr error

	// Call tracking
	EnsureCollectionCallCount int
	DeleteCollectionCallCount int
	UpsertCallCount           int
	VectorSize                uint64
}

// NewPersonIndex creates an empty index.
func NewPersonIndex() *PersonIndex {
	return &PersonIndex{Docs: make(map[int64]ports.PersonDocument)}
}

// EnsureCollection records the vector size.
func (m *PersonIndex) EnsureCollection(_ context.Context, vectorSize uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCollectionCallCount++
	m.VectorSize = vectorSize
	return m.EnsureCollectionErr
}

// DeleteCollection removes all documents.
func (m *PersonIndex) DeleteCollection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCollectionCallCount++
	if m.Err != nil {
		return m.Err
	}
	m.Docs = make(map[int64]ports.PersonDocument)
	return nil
}

// Upsert stores documents keyed by person ID.
func (m *PersonIndex) Upsert(_ context.Context, docs []ports.PersonDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCallCount++
	if m.Err != nil {
		return m.Err
	}
	if m.Docs == nil {
		m.Docs = make(map[int64]ports.PersonDocument)
	}
	for _, d := range docs {
		m.Docs[d.PersonID] = d
	}
	return nil
}

// Search ranks documents by cosine similarity, ties broken by person ID.
func (m *PersonIndex) Search(_ context.Context, embedding []float32, limit int) ([]ports.PersonMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	matches := make([]ports.PersonMatch, 0, len(m.Docs))
	for id, d := range m.Docs {
		matches = append(matches, ports.PersonMatch{PersonID: id, Score: cosine(embedding, d.Embedding)})
	}
	slices.SortFunc(matches, func(a, b ports.PersonMatch) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.PersonID, b.PersonID))
	})
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of documents.
func (m *PersonIndex) Count(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.Docs)), m.Err
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
