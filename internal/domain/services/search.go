package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
)

const (
	// DefaultEmbeddingDimensions matches text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536
	// DefaultIndexBatchSize is the number of descriptions per embedding request.
	DefaultIndexBatchSize = 100

	indexConcurrency = 4
)

// SearchHit is a person returned by similarity search.
type SearchHit struct {
	Person *entities.Person `json:"person"`
	Score  float32          `json:"score"`
}

// IndexReport summarizes an indexing pass.
type IndexReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"` // placeholders
	Batches int `json:"batches"`
}

// SearchService indexes person descriptions for similarity search.
type SearchService struct {
	store      ports.GraphReader
	index      ports.PersonIndex
	embedder   ports.Embedder
	guard      *GraphGuard
	batchSize  int
	dimensions uint64
	logger     *slog.Logger
}

// NewSearchService creates a search service. Non-positive sizes use the defaults.
func NewSearchService(
	store ports.GraphReader,
	index ports.PersonIndex,
	embedder ports.Embedder,
	guard *GraphGuard,
	batchSize int,
	logger *slog.Logger,
) *SearchService {
	if batchSize <= 0 {
		batchSize = DefaultIndexBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		store:      store,
		index:      index,
		embedder:   embedder,
		guard:      guard,
		batchSize:  batchSize,
		dimensions: DefaultEmbeddingDimensions,
		logger:     logger,
	}
}

// Describe renders a one-line description of a person, e.g.
// "Anna Svensson, female, born about 1850 in Lund, died 1901".
func Describe(p *entities.Person) string {
	parts := []string{p.DisplayName()}
	switch p.Sex {
	case entities.SexMale:
		parts = append(parts, "male")
	case entities.SexFemale:
		parts = append(parts, "female")
	}
	if s := describeEvent("born", p.Birth, p.BirthPlace); s != "" {
		parts = append(parts, s)
	}
	if s := describeEvent("died", p.Death, p.DeathPlace); s != "" {
		parts = append(parts, s)
	}
	if p.Notes != "" {
		parts = append(parts, strings.Join(strings.Fields(p.Notes), " "))
	}
	return strings.Join(parts, ", ")
}

func describeEvent(verb string, date entities.StructuredDate, place string) string {
	var b strings.Builder
	if d := date.String(); d != "" {
		b.WriteString(verb + " " + d)
	}
	if place != "" {
		if b.Len() == 0 {
			b.WriteString(verb)
		}
		b.WriteString(" in " + place)
	}
	return b.String()
}

// Index embeds every non-placeholder person and upserts it into the index.
// Batches are embedded concurrently.
func (s *SearchService) Index(ctx context.Context) (*IndexReport, error) {
	if err := s.index.EnsureCollection(ctx, s.dimensions); err != nil {
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	var docs []ports.PersonDocument
	report := &IndexReport{}
	err := s.guard.Read(func() error {
		for offset := 0; ; offset += s.batchSize {
			persons, err := s.store.ListPersons(ctx, s.batchSize, offset)
			if err != nil {
				return fmt.Errorf("listing persons: %w", err)
			}
			for _, p := range persons {
				if p.Placeholder {
					report.Skipped++
					continue
				}
				docs = append(docs, ports.PersonDocument{
					PersonID:      p.ID,
					DirectoryName: p.DirectoryName,
					Text:          Describe(p),
				})
			}
			if len(persons) < s.batchSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)
	for start := 0; start < len(docs); start += s.batchSize {
		batch := docs[start:min(start+s.batchSize, len(docs))]
		report.Batches++
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}
			vectors, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedding batch: got %d vectors for %d texts", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			if err := s.index.Upsert(gctx, batch); err != nil {
				return fmt.Errorf("upserting batch: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Indexed = len(docs)
	recordIndexMetrics(ctx, report.Indexed)
	s.logger.InfoContext(ctx, "persons indexed",
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
		slog.Int("batches", report.Batches),
	)
	return report, nil
}

// Search returns the persons whose descriptions are most similar to query.
// Hits for persons no longer in the graph are dropped.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.PersonID
	}
	persons, err := s.store.GetPersons(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading persons: %w", err)
	}
	byID := make(map[int64]*entities.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}

	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		if p, ok := byID[m.PersonID]; ok {
			hits = append(hits, SearchHit{Person: p, Score: m.Score})
		}
	}
	return hits, nil
}
