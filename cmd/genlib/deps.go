package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/carleson/genlib/internal/application/handlers"
	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/config"
	embedder "github.com/carleson/genlib/internal/infrastructure/embedder/openai"
	"github.com/carleson/genlib/internal/infrastructure/relationaldb/sqlite"
	"github.com/carleson/genlib/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config        *config.Config
	Archive       string
	Persons       *handlers.PersonHandler
	Relationships *handlers.RelationshipHandler
	Trees         *handlers.TreeHandler
	Imports       *handlers.ImportHandler
	Search        *handlers.SearchHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	store *sqlite.Repository
	index *qdrant.Repository // nil without an embedder API key
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps opens the selected archive's graph store and, when an
// embedder key is configured, its search index.
func withInternalDeps(ctx context.Context, fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	archives, err := config.LoadArchives(cwd)
	if err != nil {
		return fmt.Errorf("loading archives: %w", err)
	}

	archive := globalArchive
	if archive == "" {
		archive = cfg.DefaultArchive
	}
	entry, err := archives.Get(archive)
	if err != nil {
		return fmt.Errorf("%w (use 'genlib archives create %s')", err, archive)
	}

	sqlitePath := cfg.SQLite.Path
	if sqlitePath == "" {
		if err := os.MkdirAll(config.ArchiveDir(cwd, archive), 0755); err != nil {
			return fmt.Errorf("creating archive directory: %w", err)
		}
		sqlitePath = config.SQLitePathForArchive(cwd, archive)
	}

	store, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	logger := slog.Default().With(slog.String("archive", archive))
	guard := services.NewGraphGuard()
	persons := services.NewPersonService(store, guard)
	relationships := services.NewRelationshipService(store, guard)
	trees := services.NewFamilyTreeService(store, guard, treeLayout(cfg.Tree), logger)
	imports := services.NewImportService(store, guard, logger)

	var search *services.SearchService
	var index *qdrant.Repository
	if cfg.Embedder.APIKey != "" {
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err = qdrant.NewRepository(cfg.Qdrant, entry.Collection)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer index.Close()
		search = services.NewSearchService(store, index, emb, guard, cfg.Embedder.BatchSize, logger)
	} else {
		logger.Debug("similarity search disabled: no embedder API key")
	}

	deps := &internalDeps{
		Deps: Deps{
			Config:        cfg,
			Archive:       archive,
			Persons:       handlers.NewPersonHandler(persons, relationships),
			Relationships: handlers.NewRelationshipHandler(relationships, persons),
			Trees:         handlers.NewTreeHandler(trees, persons, cfg.Tree.DefaultGenerations),
			Imports:       handlers.NewImportHandler(imports, search),
			Search:        handlers.NewSearchHandler(search),
		},
		store: store,
		index: index,
	}

	return fn(deps)
}

func treeLayout(cfg config.TreeConfig) services.TreeLayout {
	return services.TreeLayout{
		NodeWidth:         cfg.NodeWidth,
		NodeHeight:        cfg.NodeHeight,
		HorizontalSpacing: cfg.HorizontalSpacing,
		VerticalSpacing:   cfg.VerticalSpacing,
	}
}

// collectionFactory opens Qdrant collections for archive management. It uses
// the config in basePath when one exists and skips collections when no
// embedder key is configured.
func collectionFactory(basePath string) handlers.CollectionFactory {
	return func(collection string) (ports.CollectionManager, func() error, error) {
		cfg := config.Default()
		if config.Exists(basePath) {
			loaded, err := config.Load(basePath)
			if err != nil {
				return nil, nil, err
			}
			cfg = loaded
		}
		if cfg.Embedder.APIKey == "" {
			return nil, nil, nil
		}
		repo, err := qdrant.NewRepository(cfg.Qdrant, collection)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
}

// newArchiveHandler builds the archive handler for the working directory.
func newArchiveHandler() (*handlers.ArchiveHandler, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting current directory: %w", err)
	}
	return handlers.NewArchiveHandler(collectionFactory(cwd), slog.Default()), cwd, nil
}
