package parsers

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/carleson/genlib/internal/domain/entities"
)

// Header holds the fields of the HEAD record that matter to an import.
type Header struct {
	Source   string `json:"source,omitempty"`
	Charset  string `json:"charset,omitempty"`
	Version  string `json:"version,omitempty"`
	Encoding string `json:"-"` // encoding used to decode the input
}

// Event is a dated, placed occurrence such as a birth or a marriage.
type Event struct {
	RawDate string                  `json:"date,omitempty"`
	Date    entities.StructuredDate `json:"-"`
	Place   string                  `json:"place,omitempty"`
}

// Individual is an INDI record.
type Individual struct {
	XRef         string       `json:"xref"`
	GivenName    string       `json:"given_name,omitempty"`
	Surname      string       `json:"surname,omitempty"`
	Sex          entities.Sex `json:"sex,omitempty"`
	Birth        *Event       `json:"birth,omitempty"`
	Death        *Event       `json:"death,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	FamilyChild  []string     `json:"famc,omitempty"`
	FamilySpouse []string     `json:"fams,omitempty"`
	Line         int          `json:"line,omitempty"`
	Extra        []*Record    `json:"-"` // children with tags the model does not interpret
}

// Family is a FAM record linking partners and their children.
type Family struct {
	XRef     string    `json:"xref"`
	Husband  string    `json:"husband,omitempty"`
	Wife     string    `json:"wife,omitempty"`
	Children []string  `json:"children,omitempty"`
	Marriage *Event    `json:"marriage,omitempty"`
	Line     int       `json:"line,omitempty"`
	Extra    []*Record `json:"-"`
}

// Document is a fully parsed interchange file. Individuals and families keep
// document order, duplicates included.
type Document struct {
	Header       Header        `json:"header"`
	Individuals  []*Individual `json:"individuals"`
	Families     []*Family     `json:"families"`
	OtherRecords int           `json:"-"` // top-level records other than HEAD, INDI, FAM, NOTE and TRLR
}

// RecordCount returns the number of records an import processes.
func (d *Document) RecordCount() int {
	return len(d.Individuals) + len(d.Families)
}

// GEDCOMParser parses the line-oriented interchange format.
type GEDCOMParser struct{}

// Parse reads the whole input, decodes it and builds the document. It fails
// with a *MalformedRecordError on the first structural violation.
func (p *GEDCOMParser) Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	decoded := Decode(raw)
	doc, err := BuildDocument(NewRecordReader(strings.NewReader(decoded.Text)).All())
	if err != nil {
		return nil, err
	}

	doc.Header.Encoding = decoded.Encoding
	if doc.Header.Charset == "" {
		doc.Header.Charset = decoded.Declared
	}
	return doc, nil
}

// BuildDocument assembles a document from a record sequence. Note pointers
// are resolved once every record has been seen.
func BuildDocument(records iter.Seq2[*Record, error]) (*Document, error) {
	doc := &Document{Individuals: []*Individual{}, Families: []*Family{}}
	notes := make(map[string]string)
	noteRefs := make(map[*Individual][]string)

	for rec, err := range records {
		if err != nil {
			return nil, err
		}

		switch rec.Tag {
		case "HEAD":
			doc.Header = buildHeader(rec)
		case "INDI":
			if rec.XRef == "" {
				return nil, &MalformedRecordError{Line: rec.Line, Text: "0 INDI", Reason: "individual without cross-reference"}
			}
			ind, refs := buildIndividual(rec)
			doc.Individuals = append(doc.Individuals, ind)
			if len(refs) > 0 {
				noteRefs[ind] = refs
			}
		case "FAM":
			if rec.XRef == "" {
				return nil, &MalformedRecordError{Line: rec.Line, Text: "0 FAM", Reason: "family without cross-reference"}
			}
			doc.Families = append(doc.Families, buildFamily(rec))
		case "NOTE":
			if rec.XRef != "" {
				notes[rec.XRef] = rec.Value
			}
		case "TRLR":
		default:
			doc.OtherRecords++
		}
	}

	for ind, refs := range noteRefs {
		for _, ref := range refs {
			if text, ok := notes[ref]; ok {
				ind.Notes = appendNote(ind.Notes, text)
			}
		}
	}

	return doc, nil
}

func buildHeader(rec *Record) Header {
	h := Header{
		Source:  rec.ChildValue("SOUR"),
		Charset: rec.ChildValue("CHAR"),
	}
	if gedc := rec.Child("GEDC"); gedc != nil {
		h.Version = gedc.ChildValue("VERS")
	}
	return h
}

// buildIndividual returns the individual and the note pointers it references.
func buildIndividual(rec *Record) (*Individual, []string) {
	ind := &Individual{XRef: rec.XRef, Line: rec.Line}
	var noteRefs []string
	named := false

	for _, c := range rec.Children {
		switch c.Tag {
		case "NAME":
			if named {
				ind.Extra = append(ind.Extra, c)
				continue
			}
			named = true
			ind.GivenName, ind.Surname = splitName(c.Value)
			if v := c.ChildValue("GIVN"); v != "" {
				ind.GivenName = v
			}
			if v := c.ChildValue("SURN"); v != "" {
				ind.Surname = v
			}
		case "SEX":
			ind.Sex = entities.ParseSex(c.Value)
		case "BIRT":
			ind.Birth = buildEvent(c)
		case "CHR", "BAPM":
			if ind.Birth == nil {
				ind.Birth = buildEvent(c)
			}
			ind.Extra = append(ind.Extra, c)
		case "DEAT":
			ind.Death = buildEvent(c)
		case "BURI", "CREM":
			if ind.Death == nil {
				ind.Death = buildEvent(c)
			}
			ind.Extra = append(ind.Extra, c)
		case "NOTE":
			if isPointer(c.Value) {
				noteRefs = append(noteRefs, strings.TrimSpace(c.Value))
			} else {
				ind.Notes = appendNote(ind.Notes, c.Value)
			}
		case "FAMC":
			ind.FamilyChild = append(ind.FamilyChild, strings.TrimSpace(c.Value))
		case "FAMS":
			ind.FamilySpouse = append(ind.FamilySpouse, strings.TrimSpace(c.Value))
		default:
			ind.Extra = append(ind.Extra, c)
		}
	}

	return ind, noteRefs
}

func buildFamily(rec *Record) *Family {
	fam := &Family{XRef: rec.XRef, Line: rec.Line}
	for _, c := range rec.Children {
		switch c.Tag {
		case "HUSB":
			fam.Husband = strings.TrimSpace(c.Value)
		case "WIFE":
			fam.Wife = strings.TrimSpace(c.Value)
		case "CHIL":
			fam.Children = append(fam.Children, strings.TrimSpace(c.Value))
		case "MARR":
			fam.Marriage = buildEvent(c)
		default:
			fam.Extra = append(fam.Extra, c)
		}
	}
	return fam
}

func buildEvent(rec *Record) *Event {
	raw := rec.ChildValue("DATE")
	ev := &Event{RawDate: raw, Place: rec.ChildValue("PLAC")}
	if raw != "" {
		ev.Date = ParseDate(raw)
	}
	return ev
}

// splitName splits "Given /Surname/ Suffix" into given name and surname.
// A suffix after the surname is kept with the given name.
func splitName(value string) (given, surname string) {
	before, rest, found := strings.Cut(value, "/")
	if !found {
		return strings.Join(strings.Fields(value), " "), ""
	}
	surname, after, _ := strings.Cut(rest, "/")
	parts := append(strings.Fields(before), strings.Fields(after)...)
	return strings.Join(parts, " "), strings.TrimSpace(surname)
}

func isPointer(value string) bool {
	v := strings.TrimSpace(value)
	return len(v) > 2 && strings.HasPrefix(v, "@") && strings.HasSuffix(v, "@")
}

func appendNote(existing, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return existing
	}
	if existing == "" {
		return text
	}
	return existing + "\n" + text
}
