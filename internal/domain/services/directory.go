package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/carleson/genlib/internal/domain/ports"
)

const (
	unknownDirectoryName = "unknown"
	maxDirectorySuffix   = 999
)

// Letters that do not decompose into a base letter plus a combining mark.
var letterReplacer = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"ß", "ss",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"œ", "oe",
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// NormalizeDirectoryName derives a filesystem-safe name from a person's names:
// lowercase ASCII letters and digits joined by single underscores.
func NormalizeDirectoryName(givenName, surname string) string {
	name := strings.ToLower(strings.TrimSpace(givenName + " " + surname))
	name = letterReplacer.Replace(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, name); err == nil {
		name = stripped
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	if b.Len() == 0 {
		return unknownDirectoryName
	}
	return b.String()
}

// UniqueDirectoryName returns the normalized name, or the first free name_N
// for N from 2 to 999, or name_<unix nanoseconds> when all of those are taken.
func UniqueDirectoryName(ctx context.Context, reader ports.GraphReader, givenName, surname string) (string, error) {
	base := NormalizeDirectoryName(givenName, surname)

	taken, err := reader.DirectoryNameExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("checking directory name: %w", err)
	}
	if !taken {
		return base, nil
	}

	for n := 2; n <= maxDirectorySuffix; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		taken, err := reader.DirectoryNameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking directory name: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s_%d", base, timeNow().UnixNano()), nil
}
