package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carleson/genlib/internal/domain/ports"
	"github.com/carleson/genlib/internal/domain/services"
	"github.com/carleson/genlib/internal/infrastructure/config"
)

// collectionTimeout bounds each call to the vector database.
const collectionTimeout = 10 * time.Second

// CollectionFactory opens the vector collection backing an archive. The
// returned function releases the connection. A nil manager without an error
// means search is not configured.
type CollectionFactory func(collection string) (ports.CollectionManager, func() error, error)

// ArchiveInfo describes one archive.
type ArchiveInfo struct {
	Name        string    `json:"name"`
	Collection  string    `json:"collection"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Default     bool      `json:"default"`
	Path        string    `json:"path"`
}

// ArchiveHandler manages archives: independent graphs, each with its own
// database and search collection.
type ArchiveHandler struct {
	collections CollectionFactory
	logger      *slog.Logger
}

// NewArchiveHandler creates a new ArchiveHandler. A nil factory skips search
// collections entirely.
func NewArchiveHandler(collections CollectionFactory, logger *slog.Logger) *ArchiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveHandler{collections: collections, logger: logger}
}

// List returns the configured archives sorted by name.
func (h *ArchiveHandler) List(basePath string) ([]ArchiveInfo, error) {
	archives, err := config.LoadArchives(basePath)
	if err != nil {
		return nil, err
	}
	defaultArchive := config.DefaultArchive
	if config.Exists(basePath) {
		cfg, err := config.Load(basePath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		defaultArchive = cfg.DefaultArchive
	}

	infos := make([]ArchiveInfo, 0, len(archives.Archives))
	for _, name := range archives.Names() {
		entry := archives.Archives[name]
		infos = append(infos, ArchiveInfo{
			Name:        name,
			Collection:  entry.Collection,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
			Default:     name == defaultArchive,
			Path:        config.ArchiveDir(basePath, name),
		})
	}
	return infos, nil
}

// Create registers a new archive and prepares its directory and search
// collection. A collection that cannot be created is logged, not fatal:
// search is optional.
func (h *ArchiveHandler) Create(ctx context.Context, basePath, name, description string) (*ArchiveInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("archive name is required")
	}
	if !config.Exists(basePath) {
		if err := config.WriteDefault(basePath); err != nil {
			return nil, fmt.Errorf("initializing config: %w", err)
		}
	}

	archives, err := config.LoadArchives(basePath)
	if err != nil {
		return nil, err
	}
	if archives.Exists(name) {
		return nil, fmt.Errorf("archive %q already exists", name)
	}

	dir := config.ArchiveDir(basePath, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	entry := config.ArchiveEntry{
		Collection:  config.GenerateCollectionName(name),
		Description: description,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	archives.Add(name, entry)
	if err := archives.Save(basePath); err != nil {
		return nil, fmt.Errorf("saving archives: %w", err)
	}

	h.withCollection(ctx, entry.Collection, func(ctx context.Context, cm ports.CollectionManager) error {
		return cm.EnsureCollection(ctx, services.DefaultEmbeddingDimensions)
	})

	return &ArchiveInfo{
		Name:        name,
		Collection:  entry.Collection,
		Description: description,
		CreatedAt:   entry.CreatedAt,
		Path:        dir,
	}, nil
}

// Delete removes an archive, its database and its search collection.
func (h *ArchiveHandler) Delete(ctx context.Context, basePath, name string) error {
	archives, err := config.LoadArchives(basePath)
	if err != nil {
		return err
	}
	entry, err := archives.Get(name)
	if err != nil {
		return err
	}

	archives.Remove(name)
	if err := archives.Save(basePath); err != nil {
		return fmt.Errorf("saving archives: %w", err)
	}
	if err := os.RemoveAll(config.ArchiveDir(basePath, name)); err != nil {
		return fmt.Errorf("removing archive directory: %w", err)
	}

	h.withCollection(ctx, entry.Collection, func(ctx context.Context, cm ports.CollectionManager) error {
		return cm.DeleteCollection(ctx)
	})
	return nil
}

func (h *ArchiveHandler) withCollection(
	ctx context.Context,
	collection string,
	fn func(context.Context, ports.CollectionManager) error,
) {
	if h.collections == nil {
		return
	}
	cm, closeFn, err := h.collections(collection)
	if err == nil && cm == nil {
		h.logger.Debug("search not configured, skipping collection", slog.String("collection", collection))
		return
	}
	if err == nil {
		defer closeFn()
		ctx, cancel := context.WithTimeout(ctx, collectionTimeout)
		defer cancel()
		err = fn(ctx, cm)
	}
	if err != nil {
		h.logger.Warn("search collection unavailable",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
	}
}
