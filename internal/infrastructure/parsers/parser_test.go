package parsers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/entities"
)

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	input := `{
		"header": {"source": "Export"},
		"individuals": [
			{"xref": "@I1@", "given_name": "Anna", "surname": "Svensson", "sex": "F",
			 "birth": {"date": "ABT 1850", "place": "Lund"}, "fams": ["@F1@"]},
			{"xref": "@I2@", "given_name": "Per", "surname": "Svensson", "sex": "M"}
		],
		"families": [
			{"xref": "@F1@", "husband": "@I2@", "wife": "@I1@", "marriage": {"date": "1872"}}
		]
	}`

	parser := &JSONParser{}
	doc, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "Export", doc.Header.Source)
	require.Len(t, doc.Individuals, 2)
	require.Len(t, doc.Families, 1)
	assert.Equal(t, 3, doc.RecordCount())

	anna := doc.Individuals[0]
	assert.Equal(t, "@I1@", anna.XRef)
	assert.Equal(t, entities.SexFemale, anna.Sex)
	assert.Equal(t, 1, anna.Line)
	require.NotNil(t, anna.Birth)
	assert.Equal(t, entities.QualifierAbout, anna.Birth.Date.Qualifier)
	assert.Equal(t, 1850, anna.Birth.Date.Value.Year)
	assert.Equal(t, "Lund", anna.Birth.Place)

	fam := doc.Families[0]
	assert.Equal(t, 3, fam.Line)
	require.NotNil(t, fam.Marriage)
	assert.Equal(t, entities.YearOnly(1872), fam.Marriage.Date.Value)
}

func TestJSONParser_Parse_EmptyDocument(t *testing.T) {
	parser := &JSONParser{}
	doc, err := parser.Parse(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Individuals)
	assert.Empty(t, doc.Families)
	assert.Zero(t, doc.RecordCount())
}

func TestJSONParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		malformed bool
	}{
		{name: "not json", input: "not json"},
		{name: "individual without xref", input: `{"individuals": [{"given_name": "Anna"}]}`, malformed: true},
		{name: "family without xref", input: `{"families": [{"husband": "@I1@"}]}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedRecord))
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &GEDCOMParser{}, ForFormat("gedcom"))
	assert.IsType(t, &GEDCOMParser{}, ForFormat("GED"))
	assert.Nil(t, ForFormat("csv"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("family.json"))
	assert.IsType(t, &GEDCOMParser{}, ForFile("family.ged"))
	assert.IsType(t, &GEDCOMParser{}, ForFile("FAMILY.GEDCOM"))
	assert.Nil(t, ForFile("file.txt"))
	assert.Nil(t, ForFile("noextension"))
}
