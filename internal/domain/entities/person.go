// Package entities contains core domain data structures of the genealogy graph.
package entities

import (
	"strconv"
	"strings"
	"time"
)

// Sex is the sex marker recorded for a person.
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "U"
)

// ParseSex converts an interchange sex marker to a Sex.
func ParseSex(s string) Sex {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return SexMale
	case "F", "FEMALE":
		return SexFemale
	default:
		return SexUnknown
	}
}

// Person is a node of the relationship graph.
// DirectoryName is unique across all persons and never changes once assigned.
type Person struct {
	ID               int64          `json:"id"`
	GivenName        string         `json:"given_name"`
	Surname          string         `json:"surname"`
	Sex              Sex            `json:"sex"`
	Birth            StructuredDate `json:"birth"`
	BirthPlace       string         `json:"birth_place,omitempty"`
	Death            StructuredDate `json:"death"`
	DeathPlace       string         `json:"death_place,omitempty"`
	DirectoryName    string         `json:"directory_name"`
	ProfileImagePath string         `json:"profile_image_path,omitempty"`
	Bookmarked       bool           `json:"bookmarked"`
	Placeholder      bool           `json:"placeholder,omitempty"` // created for an unresolved reference
	ExternalSource   string         `json:"external_source,omitempty"`
	ExternalID       string         `json:"external_id,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DisplayName returns "Given Surname", or "Unknown" when both are empty.
func (p *Person) DisplayName() string {
	name := strings.TrimSpace(p.GivenName + " " + p.Surname)
	if name == "" {
		return "Unknown"
	}
	return name
}

// Lifespan renders birth and death years, e.g. "1850-1901" or "1850-".
func (p *Person) Lifespan() string {
	by, bok := p.Birth.Year()
	dy, dok := p.Death.Year()
	switch {
	case bok && dok:
		return strconv.Itoa(by) + "-" + strconv.Itoa(dy)
	case bok:
		return strconv.Itoa(by) + "-"
	case dok:
		return "-" + strconv.Itoa(dy)
	default:
		return ""
	}
}

// Age returns the age in whole years at death, or at now for the living.
// The second result is false when the birth date is unknown.
func (p *Person) Age(now time.Time) (int, bool) {
	if p.Birth.IsUnknown() {
		return 0, false
	}
	end := DateValue{Year: now.Year(), Month: int(now.Month()), Day: now.Day(), Precision: PrecisionDay}
	if !p.Death.IsUnknown() {
		end = p.Death.Value
	}
	start := p.Birth.Value
	age := end.Year - start.Year
	if start.Precision >= PrecisionMonth && end.Precision >= PrecisionMonth {
		if end.Month < start.Month ||
			(end.Month == start.Month && start.Precision == PrecisionDay && end.Precision == PrecisionDay && end.Day < start.Day) {
			age--
		}
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
