package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/infrastructure/parsers"
)

const (
	// DefaultImportSource namespaces external ids when no source is given.
	DefaultImportSource = "gedcom"
	// DefaultProgressEvery is the number of records between progress snapshots.
	DefaultProgressEvery = 100

	previewSampleSize = 5
)

// errDryRun rolls back the transaction of a dry run.
var errDryRun = errors.New("dry run")

// IssueKind classifies a non-fatal problem found during an import.
type IssueKind string

const (
	IssueDuplicateIndividual     IssueKind = "duplicate_individual"
	IssueDuplicateFamily         IssueKind = "duplicate_family"
	IssueUnresolvedReference     IssueKind = "unresolved_reference"
	IssueSelfRelationship        IssueKind = "self_relationship"
	IssueConflictingRelationship IssueKind = "conflicting_relationship"
)

// ImportIssue is a soft problem recorded against a record. The import continues.
type ImportIssue struct {
	Line    int       `json:"line,omitempty"`
	Ref     string    `json:"ref,omitempty"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Source        string                // namespace of external ids
	FileName      string                // recorded with the run
	DryRun        bool                  // execute, then roll back
	Progress      chan<- ImportProgress // drained by the caller, closed when Import returns
	ProgressEvery int                   // records between snapshots
}

// ImportProgress is a snapshot of a running import.
type ImportProgress struct {
	RecordsProcessed     int `json:"records_processed"`
	TotalRecords         int `json:"total_records"`
	PersonsCreated       int `json:"persons_created"`
	RelationshipsCreated int `json:"relationships_created"`
	DuplicatesSkipped    int `json:"duplicates_skipped"`
	UnresolvedReferences int `json:"unresolved_references"`
}

// ImportReport summarizes an import.
type ImportReport struct {
	RunID                string        `json:"run_id"`
	Source               string        `json:"source"`
	RecordsProcessed     int           `json:"records_processed"`
	TotalRecords         int           `json:"total_records"`
	PersonsCreated       int           `json:"persons_created"`
	PlaceholdersFilled   int           `json:"placeholders_filled"`
	RelationshipsCreated int           `json:"relationships_created"`
	DuplicatesSkipped    int           `json:"duplicates_skipped"`
	UnresolvedReferences int           `json:"unresolved_references"`
	Partial              bool          `json:"partial"`
	DryRun               bool          `json:"dry_run"`
	Issues               []ImportIssue `json:"issues"`
}

// Progress returns the report counters as a progress snapshot.
func (r *ImportReport) Progress() ImportProgress {
	return ImportProgress{
		RecordsProcessed:     r.RecordsProcessed,
		TotalRecords:         r.TotalRecords,
		PersonsCreated:       r.PersonsCreated,
		RelationshipsCreated: r.RelationshipsCreated,
		DuplicatesSkipped:    r.DuplicatesSkipped,
		UnresolvedReferences: r.UnresolvedReferences,
	}
}

func (r *ImportReport) addIssue(line int, ref string, kind IssueKind, format string, args ...any) {
	r.Issues = append(r.Issues, ImportIssue{Line: line, Ref: ref, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// ImportPreview describes what an import would do without running it.
type ImportPreview struct {
	Individuals            int             `json:"individuals"`
	Families               int             `json:"families"`
	NewPersons             int             `json:"new_persons"`
	ExistingPersons        int             `json:"existing_persons"`
	DuplicateDefinitions   int             `json:"duplicate_definitions"`
	EstimatedRelationships int             `json:"estimated_relationships"`
	Samples                []PreviewPerson `json:"samples"`
}

// PreviewPerson is one individual shown in a preview.
type PreviewPerson struct {
	XRef     string `json:"xref"`
	Name     string `json:"name"`
	Lifespan string `json:"lifespan,omitempty"`
	Exists   bool   `json:"exists"`
}

// ImportService loads parsed documents into the relationship graph.
type ImportService struct {
	store  ports.GraphStore
	guard  *GraphGuard
	logger *slog.Logger
}

// NewImportService creates a new import service. A nil logger uses slog.Default().
func NewImportService(store ports.GraphStore, guard *GraphGuard, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{store: store, guard: guard, logger: logger}
}

// Import writes the individuals and families of doc to the graph in one
// transaction. Individuals are matched across runs by (source, xref); within a
// document the first definition wins. References to undefined individuals
// become placeholder persons.
//
// On cancellation the records processed so far are committed and the partial
// report is returned together with an error wrapping ErrImportCancelled.
func (s *ImportService) Import(ctx context.Context, doc *parsers.Document, opts ImportOptions) (*ImportReport, error) {
	if opts.Progress != nil {
		defer close(opts.Progress)
	}
	if opts.Source == "" {
		opts.Source = DefaultImportSource
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	ctx, span := tracer.Start(ctx, "services.ImportService.Import",
		trace.WithAttributes(
			attribute.String("import.source", opts.Source),
			attribute.Int("import.records", doc.RecordCount()),
			attribute.Bool("import.dry_run", opts.DryRun),
		),
	)
	defer span.End()

	started := timeNow()
	report := &ImportReport{
		RunID:        uuid.New().String(),
		Source:       opts.Source,
		TotalRecords: doc.RecordCount(),
		DryRun:       opts.DryRun,
		Issues:       []ImportIssue{},
	}

	s.logger.InfoContext(ctx, "import started",
		slog.String("run_id", report.RunID),
		slog.String("source", opts.Source),
		slog.String("file", opts.FileName),
		slog.Int("individuals", len(doc.Individuals)),
		slog.Int("families", len(doc.Families)),
		slog.Bool("dry_run", opts.DryRun),
	)

	// Store calls use a context detached from cancellation so the processed
	// prefix can still commit.
	storeCtx := context.WithoutCancel(ctx)

	err := s.guard.Write(func() error {
		return s.store.WithinTx(storeCtx, func(w ports.GraphWriter) error {
			run := &importRun{
				w:        w,
				source:   opts.Source,
				report:   report,
				xrefs:    make(map[string]int64),
				families: make(map[string]bool),
				progress: opts.Progress,
				every:    opts.ProgressEvery,
			}
			if err := run.execute(ctx, storeCtx, doc); err != nil {
				return err
			}
			if opts.DryRun {
				return errDryRun
			}
			return w.RecordImportRun(storeCtx, report.toRun(opts.FileName, started, timeNow()))
		})
	})
	if errors.Is(err, errDryRun) {
		err = nil
	}

	duration := timeNow().Sub(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordImportMetrics(ctx, duration, report, "failed")
		s.logger.ErrorContext(ctx, "import failed",
			slog.String("run_id", report.RunID),
			slog.Int("records_processed", report.RecordsProcessed),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("importing: %w", err)
	}

	// The final snapshot ignores cancellation so consumers always see the
	// counts of a partial run.
	sendProgress(storeCtx, opts.Progress, report.Progress())

	status := "completed"
	if report.Partial {
		status = "cancelled"
	}
	recordImportMetrics(ctx, duration, report, status)
	span.SetAttributes(
		attribute.Int("import.persons_created", report.PersonsCreated),
		attribute.Int("import.relationships_created", report.RelationshipsCreated),
		attribute.Int("import.unresolved", report.UnresolvedReferences),
	)
	s.logger.InfoContext(ctx, "import finished",
		slog.String("run_id", report.RunID),
		slog.String("status", status),
		slog.Duration("duration", duration),
		slog.Int("records_processed", report.RecordsProcessed),
		slog.Int("persons_created", report.PersonsCreated),
		slog.Int("relationships_created", report.RelationshipsCreated),
		slog.Int("duplicates_skipped", report.DuplicatesSkipped),
		slog.Int("unresolved_references", report.UnresolvedReferences),
	)

	if report.Partial {
		cause := ctx.Err()
		span.SetStatus(codes.Error, ErrImportCancelled.Error())
		return report, fmt.Errorf("%w after %d of %d records: %w",
			ErrImportCancelled, report.RecordsProcessed, report.TotalRecords, cause)
	}
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// Preview reports what importing doc under source would create.
func (s *ImportService) Preview(ctx context.Context, doc *parsers.Document, source string) (*ImportPreview, error) {
	if source == "" {
		source = DefaultImportSource
	}
	preview := &ImportPreview{
		Individuals: len(doc.Individuals),
		Families:    len(doc.Families),
		Samples:     []PreviewPerson{},
	}

	seen := make(map[string]bool, len(doc.Individuals))
	for _, ind := range doc.Individuals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[ind.XRef] {
			preview.DuplicateDefinitions++
			continue
		}
		seen[ind.XRef] = true

		existing, err := s.store.FindPersonByExternalID(ctx, source, ind.XRef)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", ind.XRef, err)
		}
		exists := existing != nil && !existing.Placeholder
		if exists {
			preview.ExistingPersons++
		} else {
			preview.NewPersons++
		}

		if len(preview.Samples) < previewSampleSize {
			p := personFromIndividual(ind, source)
			preview.Samples = append(preview.Samples, PreviewPerson{
				XRef:     ind.XRef,
				Name:     p.DisplayName(),
				Lifespan: p.Lifespan(),
				Exists:   exists,
			})
		}
	}

	for _, fam := range doc.Families {
		parents := 0
		if fam.Husband != "" {
			parents++
		}
		if fam.Wife != "" {
			parents++
		}
		if parents == 2 {
			preview.EstimatedRelationships++
		}
		preview.EstimatedRelationships += parents * len(fam.Children)
	}

	return preview, nil
}

// importRun holds the state of one import. The xref map is local to the run.
type importRun struct {
	w        ports.GraphWriter
	source   string
	report   *ImportReport
	xrefs    map[string]int64
	families map[string]bool
	progress chan<- ImportProgress
	every    int
}

// execute processes individuals, then families. ctx is checked for
// cancellation between records; storeCtx is used for every store call.
func (r *importRun) execute(ctx, storeCtx context.Context, doc *parsers.Document) error {
	for _, ind := range doc.Individuals {
		if ctx.Err() != nil {
			r.report.Partial = true
			return nil
		}
		if err := r.importIndividual(storeCtx, ind); err != nil {
			return fmt.Errorf("line %d: individual %s: %w", ind.Line, ind.XRef, err)
		}
		r.processed(ctx)
	}

	for _, fam := range doc.Families {
		if ctx.Err() != nil {
			r.report.Partial = true
			return nil
		}
		if err := r.importFamily(storeCtx, fam); err != nil {
			return fmt.Errorf("line %d: family %s: %w", fam.Line, fam.XRef, err)
		}
		r.processed(ctx)
	}
	return nil
}

func (r *importRun) processed(ctx context.Context) {
	r.report.RecordsProcessed++
	if r.report.RecordsProcessed%r.every == 0 && r.report.RecordsProcessed < r.report.TotalRecords {
		sendProgress(ctx, r.progress, r.report.Progress())
	}
}

func (r *importRun) importIndividual(ctx context.Context, ind *parsers.Individual) error {
	if _, ok := r.xrefs[ind.XRef]; ok {
		r.report.DuplicatesSkipped++
		r.report.addIssue(ind.Line, ind.XRef, IssueDuplicateIndividual,
			"individual %s defined more than once, keeping the first definition", ind.XRef)
		return nil
	}

	existing, err := r.w.FindPersonByExternalID(ctx, r.source, ind.XRef)
	if err != nil {
		return fmt.Errorf("looking up existing person: %w", err)
	}
	if existing != nil {
		r.xrefs[ind.XRef] = existing.ID
		if !existing.Placeholder {
			r.report.DuplicatesSkipped++
			return nil
		}
		filled := personFromIndividual(ind, r.source)
		filled.ID = existing.ID
		filled.DirectoryName = existing.DirectoryName
		filled.Bookmarked = existing.Bookmarked
		filled.CreatedAt = existing.CreatedAt
		if err := r.w.UpdatePerson(ctx, filled); err != nil {
			return fmt.Errorf("filling placeholder: %w", err)
		}
		r.report.PlaceholdersFilled++
		return nil
	}

	person := personFromIndividual(ind, r.source)
	if err := r.create(ctx, person, person.GivenName, person.Surname); err != nil {
		return err
	}
	r.xrefs[ind.XRef] = person.ID
	r.report.PersonsCreated++
	return nil
}

func (r *importRun) importFamily(ctx context.Context, fam *parsers.Family) error {
	if r.families[fam.XRef] {
		r.report.DuplicatesSkipped++
		r.report.addIssue(fam.Line, fam.XRef, IssueDuplicateFamily,
			"family %s defined more than once, keeping the first definition", fam.XRef)
		return nil
	}
	r.families[fam.XRef] = true

	var parents []int64
	for _, ref := range []string{fam.Husband, fam.Wife} {
		if ref == "" {
			continue
		}
		id, err := r.resolve(ctx, ref, fam)
		if err != nil {
			return err
		}
		parents = append(parents, id)
	}

	if len(parents) == 2 {
		var date entities.StructuredDate
		if fam.Marriage != nil {
			date = fam.Marriage.Date
		}
		if err := r.relate(ctx, fam, parents[0], parents[1], entities.CategorySpouse, 0, date); err != nil {
			return err
		}
	}

	for _, ref := range fam.Children {
		childID, err := r.resolve(ctx, ref, fam)
		if err != nil {
			return err
		}
		for _, parentID := range parents {
			if err := r.relate(ctx, fam, parentID, childID, entities.CategoryParentChild, parentID, entities.StructuredDate{}); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve maps a reference to a person id: first the run map, then a person
// stored by an earlier run, then a new placeholder.
func (r *importRun) resolve(ctx context.Context, ref string, fam *parsers.Family) (int64, error) {
	if id, ok := r.xrefs[ref]; ok {
		return id, nil
	}

	existing, err := r.w.FindPersonByExternalID(ctx, r.source, ref)
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", ref, err)
	}
	if existing != nil {
		r.xrefs[ref] = existing.ID
		return existing.ID, nil
	}

	placeholder := &entities.Person{
		Sex:            entities.SexUnknown,
		Placeholder:    true,
		ExternalSource: r.source,
		ExternalID:     ref,
	}
	if err := r.create(ctx, placeholder, "unknown", strings.Trim(ref, "@")); err != nil {
		return 0, err
	}
	r.xrefs[ref] = placeholder.ID
	r.report.UnresolvedReferences++
	r.report.addIssue(fam.Line, ref, IssueUnresolvedReference,
		"family %s references undefined individual %s, created placeholder", fam.XRef, ref)
	return placeholder.ID, nil
}

func (r *importRun) create(ctx context.Context, person *entities.Person, given, surname string) error {
	name, err := UniqueDirectoryName(ctx, r.w, given, surname)
	if err != nil {
		return err
	}
	person.DirectoryName = name
	if err := r.w.CreatePerson(ctx, person); err != nil {
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

func (r *importRun) relate(
	ctx context.Context,
	fam *parsers.Family,
	a, b int64,
	category entities.Category,
	parentID int64,
	date entities.StructuredDate,
) error {
	rel, err := entities.NewRelationship(a, b, category, parentID)
	if errors.Is(err, entities.ErrSelfRelationship) {
		r.report.addIssue(fam.Line, fam.XRef, IssueSelfRelationship,
			"family %s relates person %d to themselves", fam.XRef, a)
		return nil
	}
	if err != nil {
		return err
	}
	rel.Date = date

	err = r.w.CreateRelationship(ctx, rel)
	switch {
	case err == nil:
		r.report.RelationshipsCreated++
		return nil
	case errors.Is(err, ports.ErrDuplicateRelationship):
		r.report.DuplicatesSkipped++
		existing, lookupErr := r.w.RelationshipBetween(ctx, a, b)
		if lookupErr != nil {
			return fmt.Errorf("looking up relationship: %w", lookupErr)
		}
		if existing != nil && (existing.Category != rel.Category || existing.ParentSide != rel.ParentSide) {
			r.report.addIssue(fam.Line, fam.XRef, IssueConflictingRelationship,
				"family %s: persons %d and %d are already related as %s, skipped %s",
				fam.XRef, a, b, existing.Category, rel.Category)
		}
		return nil
	case errors.Is(err, ports.ErrSelfRelationship):
		r.report.addIssue(fam.Line, fam.XRef, IssueSelfRelationship,
			"family %s relates person %d to themselves", fam.XRef, a)
		return nil
	default:
		return fmt.Errorf("creating relationship: %w", err)
	}
}

func (r *ImportReport) toRun(fileName string, started, finished time.Time) *entities.ImportRun {
	status := entities.ImportCompleted
	if r.Partial {
		status = entities.ImportCancelled
	}
	return &entities.ImportRun{
		ID:                   r.RunID,
		Source:               r.Source,
		FileName:             fileName,
		Status:               status,
		RecordsProcessed:     r.RecordsProcessed,
		PersonsCreated:       r.PersonsCreated,
		RelationshipsCreated: r.RelationshipsCreated,
		DuplicatesSkipped:    r.DuplicatesSkipped,
		UnresolvedReferences: r.UnresolvedReferences,
		StartedAt:            started,
		FinishedAt:           finished,
	}
}

func personFromIndividual(ind *parsers.Individual, source string) *entities.Person {
	p := &entities.Person{
		GivenName:      ind.GivenName,
		Surname:        ind.Surname,
		Sex:            ind.Sex,
		Notes:          ind.Notes,
		ExternalSource: source,
		ExternalID:     ind.XRef,
	}
	if p.Sex == "" {
		p.Sex = entities.SexUnknown
	}
	if ind.Birth != nil {
		p.Birth = ind.Birth.Date
		p.BirthPlace = ind.Birth.Place
	}
	if ind.Death != nil {
		p.Death = ind.Death.Date
		p.DeathPlace = ind.Death.Place
	}
	return p
}

// sendProgress delivers a snapshot unless the consumer is gone.
func sendProgress(ctx context.Context, ch chan<- ImportProgress, p ImportProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	case <-ctx.Done():
	}
}
