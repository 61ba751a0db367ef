package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ArchivesConfig holds the archive registry (read/write).
type ArchivesConfig struct {
	Archives map[string]ArchiveEntry `yaml:"archives,omitempty"`
}

// ArchiveEntry holds configuration for a specific archive.
type ArchiveEntry struct {
	Collection  string    `yaml:"collection"`
	Description string    `yaml:"description,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty"`
}

// LoadArchives loads the archive registry from the .genlib directory.
func LoadArchives(basePath string) (*ArchivesConfig, error) {
	data, err := os.ReadFile(ArchivesFilePath(basePath))
	if os.IsNotExist(err) {
		return &ArchivesConfig{
			Archives: make(map[string]ArchiveEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading archives file: %w", err)
	}

	var cfg ArchivesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing archives file: %w", err)
	}

	if cfg.Archives == nil {
		cfg.Archives = make(map[string]ArchiveEntry)
	}

	return &cfg, nil
}

// Save writes the archive registry to the archives file.
func (a *ArchivesConfig) Save(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling archives config: %w", err)
	}

	if err := os.WriteFile(ArchivesFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing archives file: %w", err)
	}

	return nil
}

// Add adds an archive to the registry.
func (a *ArchivesConfig) Add(name string, entry ArchiveEntry) {
	if a.Archives == nil {
		a.Archives = make(map[string]ArchiveEntry)
	}
	a.Archives[name] = entry
}

// Remove removes an archive from the registry.
func (a *ArchivesConfig) Remove(name string) {
	if a.Archives != nil {
		delete(a.Archives, name)
	}
}

// Get returns the configuration for a specific archive.
func (a *ArchivesConfig) Get(name string) (*ArchiveEntry, error) {
	if len(a.Archives) == 0 {
		return nil, errors.New("no archives configured")
	}

	entry, ok := a.Archives[name]
	if !ok {
		names := a.Names()
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return nil, fmt.Errorf("archive %q not found (available: %s)", name, strings.Join(names, ", "))
	}

	return &entry, nil
}

// GetCollection returns the vector collection name for an archive.
func (a *ArchivesConfig) GetCollection(name string) (string, error) {
	entry, err := a.Get(name)
	if err != nil {
		return "", err
	}
	return entry.Collection, nil
}

// Exists checks if an archive exists in the registry.
func (a *ArchivesConfig) Exists(name string) bool {
	_, ok := a.Archives[name]
	return ok
}

// Names returns the archive names in sorted order.
func (a *ArchivesConfig) Names() []string {
	names := make([]string, 0, len(a.Archives))
	for name := range a.Archives {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
