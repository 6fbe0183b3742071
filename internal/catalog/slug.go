package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugRunes   = 60
	maxSuffixBytes = 32
)

// Slugify derives a file-safe slug from a display name. Letters of any script
// are kept, so Korean titles produce Korean slugs.
func Slugify(name string) string {
	s := strings.ToLower(norm.NFKC.String(name))

	var b strings.Builder
	b.Grow(len(s))
	dash := false
	n := 0
	for _, r := range s {
		if n >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	return strings.Trim(b.String(), "-")
}

// ProgramSlug derives the slug for a listing candidate from its display name
// and source id alone. A non-empty source id is always appended, so two
// listings sharing a title never compete for one slug and the same listing
// resolves to the same document on every run.
func ProgramSlug(name, sourceID string) string {
	base := Slugify(name)
	if base == "" {
		base = "program"
	}

	suffix := Slugify(sourceID)
	if suffix == "" {
		return base
	}
	if len(suffix) > maxSuffixBytes {
		suffix = suffix[:maxSuffixBytes]
		for !utf8.ValidString(suffix) {
			suffix = suffix[:len(suffix)-1]
		}
	}
	return base + "-" + strings.Trim(suffix, "-")
}
