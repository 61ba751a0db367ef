package handlers

import (
	"context"
	"errors"

	"github.com/carleson/genlib/internal/domain/services"
)

// ErrSearchUnavailable is returned when similarity search is not configured.
var ErrSearchUnavailable = errors.New("similarity search is not configured")

// SearchHandler handles person indexing and similarity search.
type SearchHandler struct {
	service *services.SearchService
}

// NewSearchHandler creates a new SearchHandler. A nil service makes every
// call fail with ErrSearchUnavailable.
func NewSearchHandler(service *services.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// HandleIndex embeds and indexes all persons.
func (h *SearchHandler) HandleIndex(ctx context.Context) (*services.IndexReport, error) {
	if h.service == nil {
		return nil, ErrSearchUnavailable
	}
	return h.service.Index(ctx)
}

// HandleSearch returns persons similar to the query.
func (h *SearchHandler) HandleSearch(ctx context.Context, query string, limit int) ([]services.SearchHit, error) {
	if h.service == nil {
		return nil, ErrSearchUnavailable
	}
	return h.service.Search(ctx, query, limit)
}
