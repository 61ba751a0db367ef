package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carleson/genlib/internal/domain/entities"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw       string
		qualifier entities.Qualifier
		value     entities.DateValue
		upper     entities.DateValue
	}{
		{raw: "ABT 1850", qualifier: entities.QualifierAbout, value: entities.YearOnly(1850)},
		{raw: "abt. 1850", qualifier: entities.QualifierAbout, value: entities.YearOnly(1850)},
		{raw: "CIRCA 1850", qualifier: entities.QualifierAbout, value: entities.YearOnly(1850)},
		{raw: "BEF 1900", qualifier: entities.QualifierBefore, value: entities.YearOnly(1900)},
		{raw: "AFT 3 JUN 1901", qualifier: entities.QualifierAfter, value: entities.FullDate(1901, 6, 3)},
		{raw: "EST 1850", qualifier: entities.QualifierEstimated, value: entities.YearOnly(1850)},
		{raw: "CAL 1850", qualifier: entities.QualifierEstimated, value: entities.YearOnly(1850)},
		{raw: "1850", qualifier: entities.QualifierExact, value: entities.YearOnly(1850)},
		{raw: "MAR 1850", qualifier: entities.QualifierExact, value: entities.YearMonth(1850, 3)},
		{raw: "1850 March", qualifier: entities.QualifierExact, value: entities.YearMonth(1850, 3)},
		{raw: "12 MAR 1850", qualifier: entities.QualifierExact, value: entities.FullDate(1850, 3, 12)},
		{raw: "1850-03-12", qualifier: entities.QualifierExact, value: entities.FullDate(1850, 3, 12)},
		{raw: "1850-03", qualifier: entities.QualifierExact, value: entities.YearMonth(1850, 3)},
		{raw: "12/3 1850", qualifier: entities.QualifierExact, value: entities.FullDate(1850, 3, 12)},
		{raw: "12.3.1850", qualifier: entities.QualifierExact, value: entities.FullDate(1850, 3, 12)},
		{raw: "1750/51", qualifier: entities.QualifierExact, value: entities.YearOnly(1750)},
		{raw: "MAR 1750/51", qualifier: entities.QualifierExact, value: entities.YearMonth(1750, 3)},
		{raw: "@#DJULIAN@ 12 MAR 1700", qualifier: entities.QualifierExact, value: entities.FullDate(1700, 3, 12)},
		{raw: "INT 1850 (from the parish book)", qualifier: entities.QualifierExact, value: entities.YearOnly(1850)},
		{raw: "29 FEB 1852", qualifier: entities.QualifierExact, value: entities.FullDate(1852, 2, 29)},
		{
			raw:       "BET 1850 AND 1855",
			qualifier: entities.QualifierBetween,
			value:     entities.YearOnly(1850),
			upper:     entities.YearOnly(1855),
		},
		{
			raw:       "BET 1855 AND 1850",
			qualifier: entities.QualifierBetween,
			value:     entities.YearOnly(1850),
			upper:     entities.YearOnly(1855),
		},
		{
			raw:       "FROM MAR 1850 TO 1860",
			qualifier: entities.QualifierBetween,
			value:     entities.YearMonth(1850, 3),
			upper:     entities.YearOnly(1860),
		},
		{raw: "FROM 1850", qualifier: entities.QualifierAfter, value: entities.YearOnly(1850)},
		{raw: "TO 1860", qualifier: entities.QualifierBefore, value: entities.YearOnly(1860)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseDate(tt.raw)
			assert.Equal(t, tt.qualifier, got.Qualifier)
			assert.Equal(t, tt.value, got.Value)
			assert.Equal(t, tt.upper, got.Upper)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestParseDate_Unknown(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"unknown",
		"31 FEB 1850",
		"29 FEB 1850",
		"32 JAN 1850",
		"12 FOO 1850",
		"BET 1850",
		"BET AND 1855",
		"BET 1850 AND soon",
		"ABT",
		"ABT 0",
		"18500",
		"1850-13-01",
		"23/5",
		"1/2",
		"ABT 23/5",
		"in the spring",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			got := ParseDate(raw)
			assert.Equal(t, entities.QualifierUnknown, got.Qualifier)
			assert.True(t, got.IsUnknown())
			assert.Equal(t, raw, got.Raw)
		})
	}
}

func TestParseDate_Ordering(t *testing.T) {
	dates := []entities.StructuredDate{
		ParseDate("1850"),
		ParseDate("ABT 1850"),
		ParseDate("BEF 1850"),
		ParseDate("12 MAR 1849"),
		ParseDate("garbage"),
	}

	assert.Negative(t, dates[3].Compare(dates[0]))
	assert.Negative(t, dates[2].Compare(dates[1]))
	assert.Negative(t, dates[1].Compare(dates[0]))
	assert.Positive(t, dates[4].Compare(dates[3]))
	assert.Zero(t, ParseDate("ABT 1850").Compare(ParseDate("abt 1850")))
}
