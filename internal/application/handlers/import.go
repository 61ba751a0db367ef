package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

// ImportHandler handles importing genealogy files.
type ImportHandler struct {
	service *services.ImportService
	search  *services.SearchService
}

// NewImportHandler creates a new import handler. search may be nil when
// similarity search is not configured.
func NewImportHandler(service *services.ImportService, search *services.SearchService) *ImportHandler {
	return &ImportHandler{
		service: service,
		search:  search,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format        string                        // "gedcom", "json", or "auto"
	Source        string                        // external id namespace
	DryRun        bool                          // execute, then roll back
	Index         bool                          // index persons for search afterwards
	ProgressEvery int                           // records between progress callbacks
	OnProgress    func(services.ImportProgress) // called from a separate goroutine
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Report *services.ImportReport `json:"report"`
	Index  *services.IndexReport  `json:"index,omitempty"`
}

// Handle imports a file. The parser is chosen by opts.Format or, for "auto",
// by the file extension.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	parser, err := parserFor(opts.Format, filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	return h.HandleReader(ctx, parser, file, filepath.Base(filePath), opts)
}

// HandleReader parses r with parser and imports the result.
func (h *ImportHandler) HandleReader(
	ctx context.Context,
	parser parsers.Parser,
	r io.Reader,
	fileName string,
	opts ImportOptions,
) (*ImportResult, error) {
	doc, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", fileName, ErrInvalidInput, err)
	}

	report, err := h.run(ctx, doc, fileName, opts)
	if err != nil {
		if report != nil {
			return &ImportResult{Report: report}, err
		}
		return nil, err
	}

	result := &ImportResult{Report: report}
	if opts.Index && !opts.DryRun && h.search != nil {
		idx, err := h.search.Index(ctx)
		if err != nil {
			return result, fmt.Errorf("indexing persons: %w", err)
		}
		result.Index = idx
	}
	return result, nil
}

// run executes the import and forwards progress snapshots from a second
// goroutine so a slow consumer never holds the import's write lock longer
// than one snapshot.
func (h *ImportHandler) run(
	ctx context.Context,
	doc *parsers.Document,
	fileName string,
	opts ImportOptions,
) (*services.ImportReport, error) {
	progress := make(chan services.ImportProgress, 1)
	var report *services.ImportReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = h.service.Import(gctx, doc, services.ImportOptions{
			Source:        opts.Source,
			FileName:      fileName,
			DryRun:        opts.DryRun,
			Progress:      progress,
			ProgressEvery: opts.ProgressEvery,
		})
		return err
	})
	g.Go(func() error {
		for p := range progress {
			if opts.OnProgress != nil {
				opts.OnProgress(p)
			}
		}
		return nil
	})

	err := g.Wait()
	return report, err
}

// HandlePreview parses a file and reports what importing it would do.
func (h *ImportHandler) HandlePreview(ctx context.Context, filePath string, opts ImportOptions) (*services.ImportPreview, error) {
	parser, err := parserFor(opts.Format, filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	doc, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", filepath.Base(filePath), ErrInvalidInput, err)
	}
	return h.service.Preview(ctx, doc, opts.Source)
}

func parserFor(format, filePath string) (parsers.Parser, error) {
	var parser parsers.Parser
	if format == "" || format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(format)
	}
	if parser == nil {
		return nil, fmt.Errorf("%w: unsupported format for file: %s", ErrInvalidInput, filePath)
	}
	return parser, nil
}
