// Package parsers reads genealogical interchange files into a Document.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// Parser defines the interface for parsing a document from an input format.
type Parser interface {
	Parse(r io.Reader) (*Document, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "gedcom" (or "ged") and "json".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "gedcom", "ged":
		return &GEDCOMParser{}
	case "json":
		return &JSONParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ged", ".gedcom":
		return &GEDCOMParser{}
	case ".json":
		return &JSONParser{}
	default:
		return nil
	}
}
