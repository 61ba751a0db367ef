// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/carleson/genlib/internal/infrastructure/config"
)

// InitHandler handles workspace initialization.
type InitHandler struct {
	archives *ArchiveHandler
}

// NewInitHandler creates a new init handler.
func NewInitHandler(archives *ArchiveHandler) *InitHandler {
	return &InitHandler{archives: archives}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	Archive    *ArchiveInfo
}

// Handle writes the default config and creates the default archive.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("genlib already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	archive, err := h.archives.Create(ctx, basePath, cfg.DefaultArchive, "Default archive")
	if err != nil {
		return nil, fmt.Errorf("creating default archive: %w", err)
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		Archive:    archive,
	}, nil
}
