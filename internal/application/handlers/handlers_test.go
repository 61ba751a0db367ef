package handlers

import (
	"github.com/carleson/genlib/internal/domain/mocks"
	"github.com/carleson/genlib/internal/domain/services"
)

// testServices wires every service to one in-memory store.
type testServices struct {
	store         *mocks.GraphStore
	index         *mocks.PersonIndex
	embedder      *mocks.Embedder
	persons       *services.PersonService
	relationships *services.RelationshipService
	imports       *services.ImportService
	trees         *services.FamilyTreeService
	search        *services.SearchService
}

func newTestServices() *testServices {
	store := mocks.NewGraphStore()
	index := mocks.NewPersonIndex()
	embedder := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2, 0.3}}
	guard := services.NewGraphGuard()
	return &testServices{
		store:         store,
		index:         index,
		embedder:      embedder,
		persons:       services.NewPersonService(store, guard),
		relationships: services.NewRelationshipService(store, guard),
		imports:       services.NewImportService(store, guard, nil),
		trees:         services.NewFamilyTreeService(store, guard, services.TreeLayout{}, nil),
		search:        services.NewSearchService(store, index, embedder, guard, 10, nil),
	}
}
