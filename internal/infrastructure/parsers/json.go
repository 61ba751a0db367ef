package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses the JSON rendering of a Document.
type JSONParser struct{}

// Parse reads a JSON document. Raw dates are interpreted the same way as in
// the line format, and individuals and families are numbered by position.
func (p *JSONParser) Parse(r io.Reader) (*Document, error) {
	var doc Document

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if doc.Individuals == nil {
		doc.Individuals = []*Individual{}
	}
	if doc.Families == nil {
		doc.Families = []*Family{}
	}
	doc.Header.Encoding = "UTF-8"

	// Line numbers are array index + 1, individuals first.
	for i, ind := range doc.Individuals {
		if ind == nil || ind.XRef == "" {
			return nil, &MalformedRecordError{Line: i + 1, Text: "individual", Reason: "individual without xref"}
		}
		ind.Line = i + 1
		interpret(ind.Birth)
		interpret(ind.Death)
	}
	for i, fam := range doc.Families {
		if fam == nil || fam.XRef == "" {
			return nil, &MalformedRecordError{Line: len(doc.Individuals) + i + 1, Text: "family", Reason: "family without xref"}
		}
		fam.Line = len(doc.Individuals) + i + 1
		interpret(fam.Marriage)
	}

	return &doc, nil
}

func interpret(ev *Event) {
	if ev != nil && ev.RawDate != "" {
		ev.Date = ParseDate(ev.RawDate)
	}
}
