package parsers

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// headerScanLines bounds how far into the input the CHAR declaration is looked for.
const headerScanLines = 200

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decoded is the result of decoding raw interchange bytes to text.
type Decoded struct {
	Text     string
	Declared string // CHAR value from the header, empty if none
	Encoding string // encoding actually used
}

// Decode converts raw bytes to UTF-8 text. A byte-order mark wins, then the
// header's CHAR declaration; an undeclared or unsupported encoding falls back
// to detection and finally to windows-1252, which accepts any byte sequence.
// Decode never fails.
func Decode(raw []byte) Decoded {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return Decoded{Text: strings.ToValidUTF8(string(raw[len(bomUTF8):]), "\uFFFD"), Encoding: "UTF-8"}
	case bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		if text, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), raw); ok {
			return Decoded{Text: text, Encoding: "UTF-16"}
		}
	}

	declared := declaredCharset(raw)
	if enc, name, ok := encodingFor(declared); ok {
		if enc == nil {
			if utf8.Valid(raw) {
				return Decoded{Text: string(raw), Declared: declared, Encoding: name}
			}
		} else if text, ok := decodeWith(enc, raw); ok {
			return Decoded{Text: text, Declared: declared, Encoding: name}
		}
	}

	d := fallbackDecode(raw)
	d.Declared = declared
	return d
}

func fallbackDecode(raw []byte) Decoded {
	// NUL bytes mean a wide encoding even though they are valid UTF-8.
	if utf8.Valid(raw) && bytes.IndexByte(raw, 0) < 0 {
		return Decoded{Text: string(raw), Encoding: "UTF-8"}
	}

	if guess, err := chardet.NewTextDetector().DetectBest(raw); err == nil && guess != nil {
		if enc, err := htmlindex.Get(guess.Charset); err == nil {
			if text, ok := decodeWith(enc, raw); ok {
				name, _ := htmlindex.Name(enc)
				return Decoded{Text: text, Encoding: name}
			}
		}
	}

	text, _ := decodeWith(charmap.Windows1252, raw)
	return Decoded{Text: text, Encoding: "windows-1252"}
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// encodingFor maps a CHAR declaration to an encoding. A nil encoding with ok
// set means UTF-8. ANSEL and other unknown names are not supported.
func encodingFor(declared string) (encoding.Encoding, string, bool) {
	switch strings.ToUpper(declared) {
	case "":
		return nil, "", false
	case "UTF-8", "UTF8", "ASCII", "US-ASCII":
		return nil, "UTF-8", true
	case "UNICODE", "UTF-16", "UTF16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), "UTF-16", true
	case "ANSI", "WINDOWS", "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, "windows-1252", true
	case "ISO-8859-1", "ISO8859-1", "LATIN1", "LATIN-1", "IBM WINDOWS":
		return charmap.ISO8859_1, "ISO-8859-1", true
	case "IBMPC", "IBM PC", "IBM-PC", "CP437":
		return charmap.CodePage437, "IBM437", true
	case "MACINTOSH", "MACROMAN":
		return charmap.Macintosh, "macintosh", true
	}

	enc, err := htmlindex.Get(declared)
	if err != nil {
		return nil, "", false
	}
	name, _ := htmlindex.Name(enc)
	return enc, name, true
}

// declaredCharset reads the CHAR line of the leading HEAD record. The header
// is ASCII in every supported single-byte encoding, so raw bytes are enough.
func declaredCharset(raw []byte) string {
	lines := bytes.SplitN(raw, []byte("\n"), headerScanLines)
	inHead := false
	for i, line := range lines {
		if i == headerScanLines-1 {
			break
		}
		fields := strings.Fields(string(bytes.TrimRight(line, "\r")))
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "0" {
			if inHead {
				return ""
			}
			inHead = strings.EqualFold(fields[1], "HEAD")
			continue
		}
		if inHead && fields[0] == "1" && strings.EqualFold(fields[1], "CHAR") && len(fields) > 2 {
			return strings.Join(fields[2:], " ")
		}
	}
	return ""
}
