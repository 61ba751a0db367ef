package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carleson/genlib/internal/domain/entities"
)

const sampleDocument = `0 HEAD
1 SOUR Sample
1 GEDC
2 VERS 5.5.1
1 CHAR UTF-8
0 @SUB1@ SUBM
1 NAME Submitter
0 @I1@ INDI
1 NAME Per /Svensson/
1 SEX M
1 BIRT
2 DATE 12 MAR 1850
2 PLAC Lund
1 DEAT
2 DATE BET 1900 AND 1905
1 FAMS @F1@
1 NOTE @N1@
0 @I2@ INDI
1 NAME Anna /Larsdotter/ Sr.
2 GIVN Anna Maria
1 SEX F
1 CHR
2 DATE ABT 1852
1 BURI
2 PLAC Malmö
1 FAMS @F1@
1 NOTE Inline note
1 _UID 1234
0 @I3@ INDI
1 NAME Karl
1 FAMC @F1@
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 CHIL @I3@
1 MARR
2 DATE 1872
2 PLAC Lund
0 @N1@ NOTE Shared
1 CONT note
0 TRLR
`

func TestGEDCOMParser_Parse(t *testing.T) {
	parser := &GEDCOMParser{}
	doc, err := parser.Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, Header{Source: "Sample", Charset: "UTF-8", Version: "5.5.1", Encoding: "UTF-8"}, doc.Header)
	require.Len(t, doc.Individuals, 3)
	require.Len(t, doc.Families, 1)
	assert.Equal(t, 1, doc.OtherRecords)
	assert.Equal(t, 4, doc.RecordCount())

	per := doc.Individuals[0]
	assert.Equal(t, "@I1@", per.XRef)
	assert.Equal(t, "Per", per.GivenName)
	assert.Equal(t, "Svensson", per.Surname)
	assert.Equal(t, entities.SexMale, per.Sex)
	assert.Equal(t, 8, per.Line)
	require.NotNil(t, per.Birth)
	assert.Equal(t, entities.ExactDate(entities.FullDate(1850, 3, 12)).Value, per.Birth.Date.Value)
	assert.Equal(t, "12 MAR 1850", per.Birth.RawDate)
	assert.Equal(t, "Lund", per.Birth.Place)
	require.NotNil(t, per.Death)
	assert.Equal(t, entities.QualifierBetween, per.Death.Date.Qualifier)
	assert.Equal(t, []string{"@F1@"}, per.FamilySpouse)
	assert.Equal(t, "Shared\nnote", per.Notes)

	anna := doc.Individuals[1]
	assert.Equal(t, "Anna Maria", anna.GivenName)
	assert.Equal(t, "Larsdotter", anna.Surname)
	require.NotNil(t, anna.Birth)
	assert.Equal(t, entities.QualifierAbout, anna.Birth.Date.Qualifier)
	require.NotNil(t, anna.Death)
	assert.Equal(t, "Malmö", anna.Death.Place)
	assert.True(t, anna.Death.Date.IsUnknown())
	assert.Equal(t, "Inline note", anna.Notes)
	require.NotEmpty(t, anna.Extra)
	assert.Equal(t, "_UID", anna.Extra[len(anna.Extra)-1].Tag)

	karl := doc.Individuals[2]
	assert.Equal(t, "Karl", karl.GivenName)
	assert.Empty(t, karl.Surname)
	assert.Equal(t, []string{"@F1@"}, karl.FamilyChild)

	fam := doc.Families[0]
	assert.Equal(t, "@F1@", fam.XRef)
	assert.Equal(t, "@I1@", fam.Husband)
	assert.Equal(t, "@I2@", fam.Wife)
	assert.Equal(t, []string{"@I3@"}, fam.Children)
	require.NotNil(t, fam.Marriage)
	assert.Equal(t, entities.YearOnly(1872), fam.Marriage.Date.Value)
}

func TestGEDCOMParser_Parse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{name: "level skip", input: "0 HEAD\n0 @I1@ INDI\n1 BIRT\n3 DATE 1850\n", line: 4},
		{name: "individual without xref", input: "0 HEAD\n0 INDI\n1 NAME Anna\n", line: 2},
		{name: "family without xref", input: "0 FAM\n1 HUSB @I1@\n", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &GEDCOMParser{}
			doc, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, doc)

			var malformed *MalformedRecordError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.line, malformed.Line)
			assert.Contains(t, err.Error(), "line ")
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		value   string
		given   string
		surname string
	}{
		{value: "Per /Svensson/", given: "Per", surname: "Svensson"},
		{value: "/Svensson/", given: "", surname: "Svensson"},
		{value: "Per Olof", given: "Per Olof", surname: ""},
		{value: "Per /Svensson", given: "Per", surname: "Svensson"},
		{value: "Per /af Klint/ Jr.", given: "Per Jr.", surname: "af Klint"},
		{value: "", given: "", surname: ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			given, surname := splitName(tt.value)
			assert.Equal(t, tt.given, given)
			assert.Equal(t, tt.surname, surname)
		})
	}
}

func TestBuildDocument_DuplicatesKept(t *testing.T) {
	input := "0 @I1@ INDI\n1 NAME Anna\n0 @I1@ INDI\n1 NAME Other\n"
	doc, err := BuildDocument(NewRecordReader(strings.NewReader(input)).All())
	require.NoError(t, err)
	require.Len(t, doc.Individuals, 2)
	assert.Equal(t, "Anna", doc.Individuals[0].GivenName)
	assert.Equal(t, "Other", doc.Individuals[1].GivenName)
}
