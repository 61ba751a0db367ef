package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestDecode_DeclaredCharset(t *testing.T) {
	text := "0 HEAD\n1 CHAR ANSEL\n0 @I1@ INDI\n1 NAME Åsa /Öberg/\n0 TRLR\n"

	tests := []struct {
		name     string
		charset  string
		encode   func(string) []byte
		encoding string
	}{
		{
			name:     "utf-8",
			charset:  "UTF-8",
			encode:   func(s string) []byte { return []byte(s) },
			encoding: "UTF-8",
		},
		{
			name:    "ansi",
			charset: "ANSI",
			encode: func(s string) []byte {
				out, err := charmap.Windows1252.NewEncoder().String(s)
				require.NoError(t, err)
				return []byte(out)
			},
			encoding: "windows-1252",
		},
		{
			name:    "latin1",
			charset: "ISO-8859-1",
			encode: func(s string) []byte {
				out, err := charmap.ISO8859_1.NewEncoder().String(s)
				require.NoError(t, err)
				return []byte(out)
			},
			encoding: "ISO-8859-1",
		},
		{
			name:    "ibm pc",
			charset: "IBMPC",
			encode: func(s string) []byte {
				out, err := charmap.CodePage437.NewEncoder().String(s)
				require.NoError(t, err)
				return []byte(out)
			},
			encoding: "IBM437",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := replaceCharset(text, tt.charset)
			d := Decode(tt.encode(input))
			assert.Equal(t, tt.charset, d.Declared)
			assert.Equal(t, tt.encoding, d.Encoding)
			assert.Contains(t, d.Text, "Åsa /Öberg/")
		})
	}
}

func TestDecode_ByteOrderMarks(t *testing.T) {
	text := "0 HEAD\n0 @I1@ INDI\n1 NAME Åsa /Öberg/\n"

	t.Run("utf-8", func(t *testing.T) {
		d := Decode(append([]byte{0xEF, 0xBB, 0xBF}, text...))
		assert.Equal(t, "UTF-8", d.Encoding)
		assert.Equal(t, text, d.Text)
	})

	t.Run("utf-16 little endian", func(t *testing.T) {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		raw, err := enc.Bytes([]byte(text))
		require.NoError(t, err)

		d := Decode(raw)
		assert.Equal(t, "UTF-16", d.Encoding)
		assert.Equal(t, text, d.Text)
	})

	t.Run("utf-16 big endian", func(t *testing.T) {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		raw, err := enc.Bytes([]byte(text))
		require.NoError(t, err)

		d := Decode(raw)
		assert.Equal(t, "UTF-16", d.Encoding)
		assert.Equal(t, text, d.Text)
	})
}

func TestDecode_Fallback(t *testing.T) {
	t.Run("undeclared utf-8 is kept", func(t *testing.T) {
		d := Decode([]byte("0 HEAD\n0 @I1@ INDI\n1 NAME Åsa\n"))
		assert.Empty(t, d.Declared)
		assert.Equal(t, "UTF-8", d.Encoding)
		assert.Contains(t, d.Text, "Åsa")
	})

	t.Run("unsupported declaration never fails", func(t *testing.T) {
		raw := []byte("0 HEAD\n1 CHAR ANSEL\n0 @I1@ INDI\n1 NAME \xe5sa\n")
		d := Decode(raw)
		assert.Equal(t, "ANSEL", d.Declared)
		assert.NotEmpty(t, d.Encoding)
		assert.Contains(t, d.Text, "0 @I1@ INDI")
	})
}

func TestGEDCOMParser_DecodesBeforeParsing(t *testing.T) {
	raw, err := charmap.Windows1252.NewEncoder().String(
		"0 HEAD\n1 CHAR ANSI\n0 @I1@ INDI\n1 NAME Åsa /Öberg/\n0 TRLR\n")
	require.NoError(t, err)

	parser := &GEDCOMParser{}
	doc, err := parser.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, doc.Individuals, 1)
	assert.Equal(t, "Åsa", doc.Individuals[0].GivenName)
	assert.Equal(t, "Öberg", doc.Individuals[0].Surname)
	assert.Equal(t, "ANSI", doc.Header.Charset)
	assert.Equal(t, "windows-1252", doc.Header.Encoding)
}

func replaceCharset(text, charset string) string {
	return "0 HEAD\n1 CHAR " + charset + text[len("0 HEAD\n1 CHAR ANSEL"):]
}
