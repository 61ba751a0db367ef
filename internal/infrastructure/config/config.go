// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for genlib configuration.
	DefaultConfigDir = ".genlib"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultArchivesFile is the default archives file name.
	DefaultArchivesFile = "archives.yaml"
	// DefaultArchive is the archive used when none is selected.
	DefaultArchive = "default"
	// DefaultEnvFile is loaded into the environment before overrides apply.
	DefaultEnvFile = ".env"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	DefaultArchive string          `yaml:"default_archive,omitempty"`
	Embedder       EmbedderConfig  `yaml:"embedder,omitempty"`
	Qdrant         QdrantConfig    `yaml:"qdrant,omitempty"`
	SQLite         SQLiteConfig    `yaml:"sqlite,omitempty"`
	Server         ServerConfig    `yaml:"server,omitempty"`
	Tree           TreeConfig      `yaml:"tree,omitempty"`
	Import         ImportConfig    `yaml:"import,omitempty"`
	Logging        LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry      TelemetryConfig `yaml:"telemetry,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider  string `yaml:"provider,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite graph store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// For per-archive databases, this is computed dynamically using SQLitePathForArchive.
	Path string `yaml:"path,omitempty"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// TreeConfig holds family tree defaults and layout measures.
type TreeConfig struct {
	DefaultGenerations int     `yaml:"default_generations,omitempty"`
	NodeWidth          float64 `yaml:"node_width,omitempty"`
	NodeHeight         float64 `yaml:"node_height,omitempty"`
	HorizontalSpacing  float64 `yaml:"horizontal_spacing,omitempty"`
	VerticalSpacing    float64 `yaml:"vertical_spacing,omitempty"`
}

// ImportConfig holds importer defaults.
type ImportConfig struct {
	ProgressEvery int    `yaml:"progress_every,omitempty"`
	DefaultSource string `yaml:"default_source,omitempty"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// TelemetryConfig selects the OpenTelemetry exporters used by serve.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter,omitempty"`  // none or stdout
	MetricExporter string `yaml:"metric_exporter,omitempty"` // prometheus or none
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DefaultArchive: DefaultArchive,
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Tree: TreeConfig{
			DefaultGenerations: 3,
			NodeWidth:          150,
			NodeHeight:         80,
			HorizontalSpacing:  50,
			VerticalSpacing:    100,
		},
		Import: ImportConfig{
			ProgressEvery: 100,
			DefaultSource: "gedcom",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}

// Load loads configuration from the .genlib directory in the given path.
// A .env file in basePath, if present, is loaded before environment overrides.
func Load(basePath string) (*Config, error) {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'genlib init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(filepath.Join(basePath, DefaultEnvFile)); err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadEnvFile loads KEY=value pairs without overriding variables already set.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedder.APIKey == "" {
		c.Embedder.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = key
	}
	if archive := os.Getenv("GENLIB_ARCHIVE"); archive != "" {
		c.DefaultArchive = archive
	}
	if level := os.Getenv("GENLIB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("GENLIB_HTTP_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if every := os.Getenv("GENLIB_PROGRESS_EVERY"); every != "" {
		if n, err := strconv.Atoi(every); err == nil && n > 0 {
			c.Import.ProgressEvery = n
		}
	}
}

// ConfigDir returns the path to the .genlib config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// ArchivesFilePath returns the path to the archives file.
func ArchivesFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultArchivesFile)
}

// Exists checks if a genlib config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}

// SanitizeArchiveName converts an archive name to a safe directory and collection suffix.
func SanitizeArchiveName(name string) string {
	name = strings.ToLower(name)

	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return DefaultArchive
	}

	return name
}

// GenerateCollectionName creates the vector collection name for an archive.
func GenerateCollectionName(archiveName string) string {
	return "genlib_" + SanitizeArchiveName(archiveName)
}

// SQLitePathForArchive returns the SQLite database path for a given archive.
func SQLitePathForArchive(basePath, archiveName string) string {
	return filepath.Join(ArchiveDir(basePath, archiveName), "genlib.db")
}

// ArchiveDir returns the directory path for a given archive.
func ArchiveDir(basePath, archiveName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "archives", SanitizeArchiveName(archiveName))
}
