package parsers

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

const (
	maxLevel      = 99
	maxLineLength = 1024 * 1024
)

// Record is one line of the interchange format together with its nested lines.
// Top-level records have Level 0.
type Record struct {
	Level    int       `json:"level"`
	XRef     string    `json:"xref,omitempty"`
	Tag      string    `json:"tag"`
	Value    string    `json:"value,omitempty"`
	Line     int       `json:"line"`
	Children []*Record `json:"children,omitempty"`
}

// Child returns the first child with the given tag, or nil.
func (r *Record) Child(tag string) *Record {
	for _, c := range r.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenByTag returns all children with the given tag, in document order.
func (r *Record) ChildrenByTag(tag string) []*Record {
	var out []*Record
	for _, c := range r.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// ChildValue returns the trimmed value of the first child with the given tag.
func (r *Record) ChildValue(tag string) string {
	if c := r.Child(tag); c != nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// RecordReader produces top-level records lazily from line-oriented input.
// CONC and CONT lines are folded into the value of their parent line.
type RecordReader struct {
	scanner *bufio.Scanner
	line    int
	pending *Record
	stack   []*Record
	err     error
}

// NewRecordReader creates a reader over already decoded text.
func NewRecordReader(r io.Reader) *RecordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &RecordReader{scanner: scanner}
}

// Next returns the next top-level record. It returns io.EOF after the last
// record and a *MalformedRecordError on a structural violation; after an error
// every further call returns the same error.
func (rr *RecordReader) Next() (*Record, error) {
	if rr.err != nil {
		return nil, rr.err
	}

	var current *Record
	if rr.pending != nil {
		current = rr.pending
		rr.pending = nil
		rr.stack = append(rr.stack[:0], current)
	}

	for rr.scanner.Scan() {
		rr.line++
		text := strings.TrimRight(rr.scanner.Text(), "\r")
		if rr.line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		text = strings.TrimLeft(text, " \t")
		if strings.TrimSpace(text) == "" {
			continue
		}

		node, err := parseLine(text, rr.line)
		if err != nil {
			return nil, rr.fail(err)
		}

		if node.Level == 0 {
			if current == nil {
				current = node
				rr.stack = append(rr.stack[:0], node)
				continue
			}
			rr.pending = node
			return current, nil
		}

		if current == nil {
			return nil, rr.fail(&MalformedRecordError{Line: rr.line, Text: text, Reason: "first line must be at level 0"})
		}
		if node.Level > len(rr.stack) {
			return nil, rr.fail(&MalformedRecordError{
				Line:   rr.line,
				Text:   text,
				Reason: fmt.Sprintf("level %d is deeper than allowed (at most %d)", node.Level, len(rr.stack)),
			})
		}

		// A folded line takes no slot of its own: its parent stands in for it,
		// so a following line one level deeper attaches to that parent.
		parent := rr.stack[node.Level-1]
		switch node.Tag {
		case "CONC":
			parent.Value += node.Value
			rr.stack = append(rr.stack[:node.Level], parent)
			continue
		case "CONT":
			parent.Value += "\n" + node.Value
			rr.stack = append(rr.stack[:node.Level], parent)
			continue
		}

		parent.Children = append(parent.Children, node)
		rr.stack = append(rr.stack[:node.Level], node)
	}

	if err := rr.scanner.Err(); err != nil {
		return nil, rr.fail(fmt.Errorf("reading line %d: %w", rr.line+1, err))
	}

	rr.err = io.EOF
	if current != nil {
		return current, nil
	}
	return nil, io.EOF
}

// All yields every remaining record. Iteration stops after the first error.
func (rr *RecordReader) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			rec, err := rr.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (rr *RecordReader) fail(err error) error {
	rr.err = err
	return err
}

// parseLine splits "level [@xref@] TAG [value]".
func parseLine(text string, lineNum int) (*Record, error) {
	malformed := func(reason string) error {
		return &MalformedRecordError{Line: lineNum, Text: text, Reason: reason}
	}

	levelStr, rest, _ := strings.Cut(text, " ")
	level, err := strconv.Atoi(levelStr)
	if err != nil || level < 0 || level > maxLevel {
		return nil, malformed(fmt.Sprintf("invalid level %q", levelStr))
	}

	rest = strings.TrimLeft(rest, " ")
	node := &Record{Level: level, Line: lineNum}

	if strings.HasPrefix(rest, "@") {
		end := strings.IndexByte(rest[1:], '@')
		if end < 0 {
			return nil, malformed("unterminated cross-reference")
		}
		node.XRef = rest[:end+2]
		rest = strings.TrimLeft(rest[end+2:], " ")
	}

	tag, value, _ := strings.Cut(rest, " ")
	if tag == "" {
		return nil, malformed("missing tag")
	}
	if !validTag(tag) {
		return nil, malformed(fmt.Sprintf("invalid tag %q", tag))
	}

	node.Tag = strings.ToUpper(tag)
	node.Value = value
	return node, nil
}

func validTag(tag string) bool {
	for _, r := range tag {
		if r != '_' && (r < '0' || r > '9') && (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
