package entities

import (
	"cmp"
	"fmt"
	"time"
)

// Qualifier describes how a StructuredDate relates to the calendar value it carries.
type Qualifier string

const (
	QualifierExact     Qualifier = "exact"
	QualifierAbout     Qualifier = "about"
	QualifierBefore    Qualifier = "before"
	QualifierAfter     Qualifier = "after"
	QualifierBetween   Qualifier = "between"
	QualifierEstimated Qualifier = "estimated"
	QualifierUnknown   Qualifier = "unknown"
)

// rank orders qualifiers when two dates share the same calendar value.
func (q Qualifier) rank() int {
	switch q {
	case QualifierBefore:
		return 0
	case QualifierAbout:
		return 1
	case QualifierEstimated:
		return 2
	case QualifierExact:
		return 3
	case QualifierBetween:
		return 4
	case QualifierAfter:
		return 5
	default:
		return 6
	}
}

// Precision tells which components of a DateValue are meaningful.
type Precision int

const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
)

// String returns the precision name.
func (p Precision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	default:
		return "none"
	}
}

var monthAbbrev = [...]string{"", "JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// DateValue is a calendar date known to a given precision.
// Month and Day are zero when the precision does not cover them.
type DateValue struct {
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	Day       int       `json:"day,omitempty"`
	Precision Precision `json:"precision,omitempty"`
}

// YearOnly returns a year-precision value.
func YearOnly(year int) DateValue {
	return DateValue{Year: year, Precision: PrecisionYear}
}

// YearMonth returns a month-precision value.
func YearMonth(year, month int) DateValue {
	return DateValue{Year: year, Month: month, Precision: PrecisionMonth}
}

// FullDate returns a day-precision value.
func FullDate(year, month, day int) DateValue {
	return DateValue{Year: year, Month: month, Day: day, Precision: PrecisionDay}
}

// IsZero reports whether the value carries no calendar information.
func (v DateValue) IsZero() bool {
	return v.Precision == PrecisionNone
}

// Compare orders values chronologically; a coarser value sorts before a finer one
// that shares its known components.
func (v DateValue) Compare(o DateValue) int {
	if c := cmp.Compare(v.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Month, o.Month); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Day, o.Day); c != 0 {
		return c
	}
	return cmp.Compare(v.Precision, o.Precision)
}

// String renders the value in interchange notation, e.g. "12 MAR 1850".
func (v DateValue) String() string {
	switch v.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%d", v.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%s %d", monthAbbrev[v.Month], v.Year)
	case PrecisionDay:
		return fmt.Sprintf("%d %s %d", v.Day, monthAbbrev[v.Month], v.Year)
	default:
		return ""
	}
}

// Time returns the first instant covered by the value.
func (v DateValue) Time() time.Time {
	month, day := v.Month, v.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(v.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// StructuredDate is a normalized date with an explicit qualifier.
// An unparsable input is kept as QualifierUnknown with Raw preserved; it is a
// valid value, not an error.
type StructuredDate struct {
	Qualifier Qualifier `json:"qualifier"`
	Value     DateValue `json:"value,omitempty"`
	Upper     DateValue `json:"upper,omitempty"` // only for QualifierBetween
	Raw       string    `json:"raw,omitempty"`
}

// UnknownDate returns an unknown date preserving the original text.
func UnknownDate(raw string) StructuredDate {
	return StructuredDate{Qualifier: QualifierUnknown, Raw: raw}
}

// ExactDate returns a date with the exact qualifier.
func ExactDate(v DateValue) StructuredDate {
	return StructuredDate{Qualifier: QualifierExact, Value: v}
}

// IsUnknown reports whether the date carries no usable calendar value.
// The zero StructuredDate is unknown.
func (d StructuredDate) IsUnknown() bool {
	return d.Qualifier == "" || d.Qualifier == QualifierUnknown || d.Value.IsZero()
}

// IsEmpty reports whether the date was never set.
func (d StructuredDate) IsEmpty() bool {
	return d.IsUnknown() && d.Raw == ""
}

// Compare orders dates: unknown sorts last, between-dates compare by their
// lower bound, and equal qualifiers with equal values are equal.
func (d StructuredDate) Compare(o StructuredDate) int {
	du, ou := d.IsUnknown(), o.IsUnknown()
	switch {
	case du && ou:
		return cmp.Compare(d.Raw, o.Raw)
	case du:
		return 1
	case ou:
		return -1
	}
	if c := d.Value.Compare(o.Value); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Qualifier.rank(), o.Qualifier.rank()); c != 0 {
		return c
	}
	return d.Upper.Compare(o.Upper)
}

// Year returns the best known year and whether one is known.
func (d StructuredDate) Year() (int, bool) {
	if d.IsUnknown() {
		return 0, false
	}
	return d.Value.Year, true
}

// String renders the date for display.
func (d StructuredDate) String() string {
	if d.IsUnknown() {
		return d.Raw
	}
	switch d.Qualifier {
	case QualifierAbout:
		return "about " + d.Value.String()
	case QualifierBefore:
		return "before " + d.Value.String()
	case QualifierAfter:
		return "after " + d.Value.String()
	case QualifierEstimated:
		return "estimated " + d.Value.String()
	case QualifierBetween:
		return fmt.Sprintf("between %s and %s", d.Value, d.Upper)
	default:
		return d.Value.String()
	}
}
