package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/carleson/genlib/internal/application/handlers"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

// CreateRelationshipRequest is the body of POST /api/relationships. Type is
// the role B plays for A.
type CreateRelationshipRequest struct {
	A    string `json:"a" binding:"required"`
	B    string `json:"b" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var malformed *parsers.MalformedRecordError
	switch {
	case errors.Is(err, ports.ErrDuplicateRelationship),
		errors.Is(err, ports.ErrDuplicateExternalID),
		errors.Is(err, ports.ErrDirectoryNameTaken):
		return http.StatusConflict
	case errors.Is(err, ports.ErrSelfRelationship),
		errors.Is(err, services.ErrInvalidGenerations),
		errors.Is(err, services.ErrInvalidPersonRef),
		errors.Is(err, handlers.ErrInvalidInput),
		errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrPersonNotFound),
		errors.Is(err, ports.ErrRelationshipNotFound):
		return http.StatusNotFound
	case errors.Is(err, handlers.ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// intQuery reads an optional non-negative integer query parameter.
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+key+": "+raw)
		return 0, false
	}
	return n, true
}

func boolQuery(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListPersons(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset")
	if !ok {
		return
	}

	result, err := s.h.Persons.HandleList(c.Request.Context(), handlers.PersonListOptions{
		Search: c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleShowPerson(c *gin.Context) {
	details, err := s.h.Persons.HandleShow(c.Request.Context(), c.Param("ref"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) handleRelationships(c *gin.Context) {
	result, err := s.h.Relationships.HandleList(c.Request.Context(), c.Param("ref"), handlers.ListOptions{
		Category: c.Query("category"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTree(c *gin.Context) {
	generations, ok := intQuery(c, "generations")
	if !ok {
		return
	}

	tree, err := s.h.Trees.Handle(c.Request.Context(), c.Param("ref"), generations)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (s *Server) handleCreateRelationship(c *gin.Context) {
	var req CreateRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	rel, err := s.h.Relationships.HandleCreate(c.Request.Context(), req.A, req.Type, req.B)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

// handleImport imports the request body. With stream=1 the response is a
// server-sent event stream of "progress" events ending with "report" or "error".
func (s *Server) handleImport(c *gin.Context) {
	format := c.DefaultQuery("format", "gedcom")
	parser := parsers.ForFormat(format)
	if parser == nil {
		badRequest(c, "unsupported format: "+format)
		return
	}

	opts := handlers.ImportOptions{
		Format: format,
		Source: c.Query("source"),
		DryRun: boolQuery(c, "dry_run"),
		Index:  boolQuery(c, "index"),
	}
	fileName := c.DefaultQuery("name", "upload")

	if !boolQuery(c, "stream") {
		result, err := s.h.Imports.HandleReader(c.Request.Context(), parser, c.Request.Body, fileName, opts)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// OnProgress runs on the handler's consumer goroutine while this goroutine
	// waits in HandleReader, so writes never overlap.
	opts.OnProgress = func(p services.ImportProgress) {
		c.SSEvent("progress", p)
		c.Writer.Flush()
	}

	result, err := s.h.Imports.HandleReader(c.Request.Context(), parser, c.Request.Body, fileName, opts)
	if err != nil {
		payload := gin.H{"error": err.Error(), "status": statusFor(err)}
		if result != nil {
			payload["report"] = result.Report
		}
		c.SSEvent("error", payload)
		c.Writer.Flush()
		return
	}
	c.SSEvent("report", result)
	c.Writer.Flush()
}

func (s *Server) handleSearch(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	hits, err := s.h.Search.HandleSearch(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}
