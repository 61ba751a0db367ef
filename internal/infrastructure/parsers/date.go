package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carleson/genlib/internal/domain/entities"
)

var (
	// reISODate matches 1850-05-23 and 1850-05.
	reISODate = regexp.MustCompile(`^(\d{3,4})-(\d{1,2})(?:-(\d{1,2}))?$`)
	// reDottedDate matches 23.5.1850.
	reDottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{3,4})$`)
	// reSlashedDate matches 23/5/1850.
	reSlashedDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{3,4})$`)
	// reDayMonth matches the 23/5 part of "23/5 1850".
	reDayMonth = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	// reYear matches 1850 and the dual-dated 1750/51. A bare 23/5 is a day
	// and month, not a year.
	reYear = regexp.MustCompile(`^(\d{1,4})$|^(\d{3,4})/\d{1,2}$`)
	// reParenthetical matches the phrase of an interpreted date, "INT 1850 (text)".
	reParenthetical = regexp.MustCompile(`\(.*\)`)
)

var qualifierPrefixes = map[string]entities.Qualifier{
	"ABT":        entities.QualifierAbout,
	"ABOUT":      entities.QualifierAbout,
	"CA":         entities.QualifierAbout,
	"CIRCA":      entities.QualifierAbout,
	"C":          entities.QualifierAbout,
	"BEF":        entities.QualifierBefore,
	"BEFORE":     entities.QualifierBefore,
	"AFT":        entities.QualifierAfter,
	"AFTER":      entities.QualifierAfter,
	"EST":        entities.QualifierEstimated,
	"ESTIMATED":  entities.QualifierEstimated,
	"CAL":        entities.QualifierEstimated,
	"CALCULATED": entities.QualifierEstimated,
	"INT":        entities.QualifierExact,
}

var monthNames = map[string]int{
	"JAN": 1, "JANUARY": 1,
	"FEB": 2, "FEBRUARY": 2,
	"MAR": 3, "MARCH": 3,
	"APR": 4, "APRIL": 4,
	"MAY": 5,
	"JUN": 6, "JUNE": 6,
	"JUL": 7, "JULY": 7,
	"AUG": 8, "AUGUST": 8,
	"SEP": 9, "SEPT": 9, "SEPTEMBER": 9,
	"OCT": 10, "OCTOBER": 10,
	"NOV": 11, "NOVEMBER": 11,
	"DEC": 12, "DECEMBER": 12,
}

// ParseDate interprets a free-form date string. It never fails: anything it
// cannot read becomes an unknown date carrying the original text.
func ParseDate(raw string) entities.StructuredDate {
	text := reParenthetical.ReplaceAllString(raw, " ")
	tokens := strings.Fields(strings.ToUpper(text))
	if len(tokens) == 0 {
		return entities.UnknownDate(raw)
	}

	keyword := strings.TrimSuffix(tokens[0], ".")
	rest := tokens[1:]

	switch keyword {
	case "BET", "BETWEEN":
		lower, upper, ok := splitRange(rest, "AND")
		if !ok {
			return entities.UnknownDate(raw)
		}
		return between(raw, lower, upper)
	case "FROM":
		if lower, upper, ok := splitRange(rest, "TO"); ok {
			return between(raw, lower, upper)
		}
		return qualified(raw, entities.QualifierAfter, rest)
	case "TO":
		return qualified(raw, entities.QualifierBefore, rest)
	}

	if q, ok := qualifierPrefixes[keyword]; ok {
		return qualified(raw, q, rest)
	}
	return qualified(raw, entities.QualifierExact, tokens)
}

func qualified(raw string, q entities.Qualifier, tokens []string) entities.StructuredDate {
	v, ok := parseDateValue(tokens)
	if !ok {
		return entities.UnknownDate(raw)
	}
	return entities.StructuredDate{Qualifier: q, Value: v, Raw: raw}
}

func between(raw string, lowerTokens, upperTokens []string) entities.StructuredDate {
	lower, ok := parseDateValue(lowerTokens)
	if !ok {
		return entities.UnknownDate(raw)
	}
	upper, ok := parseDateValue(upperTokens)
	if !ok {
		return entities.UnknownDate(raw)
	}
	if lower.Compare(upper) > 0 {
		lower, upper = upper, lower
	}
	return entities.StructuredDate{Qualifier: entities.QualifierBetween, Value: lower, Upper: upper, Raw: raw}
}

func splitRange(tokens []string, sep string) (lower, upper []string, ok bool) {
	for i, t := range tokens {
		if t == sep {
			return tokens[:i], tokens[i+1:], i > 0 && i < len(tokens)-1
		}
	}
	return nil, nil, false
}

// parseDateValue reads the calendar part of a date. Calendar escapes such as
// @#DJULIAN@ are skipped and the value is taken as written.
func parseDateValue(tokens []string) (entities.DateValue, bool) {
	for len(tokens) > 0 && strings.HasPrefix(tokens[0], "@#") {
		tokens = tokens[1:]
	}

	switch len(tokens) {
	case 1:
		return parseSingleToken(tokens[0])
	case 2:
		if m := reDayMonth.FindStringSubmatch(tokens[0]); m != nil {
			year, ok := parseYear(tokens[1])
			if !ok {
				return entities.DateValue{}, false
			}
			return makeDay(year, atoi(m[2]), atoi(m[1]))
		}
		monthTok, yearTok := tokens[0], tokens[1]
		if _, err := strconv.Atoi(monthTok); err == nil {
			monthTok, yearTok = yearTok, monthTok
		}
		month, ok := monthNames[strings.TrimSuffix(monthTok, ".")]
		if !ok {
			return entities.DateValue{}, false
		}
		year, ok := parseYear(yearTok)
		if !ok {
			return entities.DateValue{}, false
		}
		return entities.YearMonth(year, month), true
	case 3:
		day, err := strconv.Atoi(tokens[0])
		if err != nil {
			return entities.DateValue{}, false
		}
		month, ok := monthNames[strings.TrimSuffix(tokens[1], ".")]
		if !ok {
			return entities.DateValue{}, false
		}
		year, ok := parseYear(tokens[2])
		if !ok {
			return entities.DateValue{}, false
		}
		return makeDay(year, month, day)
	default:
		return entities.DateValue{}, false
	}
}

func parseSingleToken(tok string) (entities.DateValue, bool) {
	if m := reISODate.FindStringSubmatch(tok); m != nil {
		year, month := atoi(m[1]), atoi(m[2])
		if m[3] == "" {
			if month < 1 || month > 12 || year < 1 {
				return entities.DateValue{}, false
			}
			return entities.YearMonth(year, month), true
		}
		return makeDay(year, month, atoi(m[3]))
	}
	if m := reDottedDate.FindStringSubmatch(tok); m != nil {
		return makeDay(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := reSlashedDate.FindStringSubmatch(tok); m != nil {
		return makeDay(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if year, ok := parseYear(tok); ok {
		return entities.YearOnly(year), true
	}
	return entities.DateValue{}, false
}

func parseYear(tok string) (int, bool) {
	m := reYear.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	year := atoi(m[1] + m[2])
	return year, year >= 1
}

// makeDay validates the day against the month, so 31 FEB is rejected.
func makeDay(year, month, day int) (entities.DateValue, bool) {
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return entities.DateValue{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return entities.DateValue{}, false
	}
	return entities.FullDate(year, month, day), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
