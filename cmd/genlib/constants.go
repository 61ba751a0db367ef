package main

// Default limits for CLI commands.
const (
	DefaultSearchLimit  = 10
	DefaultListLimit    = 50
	DefaultHistoryLimit = 20
)

// Valid output formats.
var (
	validRelationsFormats = []string{"tree", "list", "json"}
	validTreeFormats      = []string{"text", "json"}
)
