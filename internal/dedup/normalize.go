// Package dedup collapses duplicate program postings and drops programs that
// are out of scope for the operator.
package dedup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// bracketTagRe matches leading region or category tags such as "[서울]",
// "(공고)" or "【부산】".
var bracketTagRe = regexp.MustCompile(`^\s*(?:\[[^\]]*\]|\([^)]*\)|【[^】]*】|<[^>]*>)\s*`)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// noticeWords are announcement boilerplate that differs between feeds posting
// the same program.
var noticeWords = []string{"공고", "모집공고", "재공고", "수정공고", "announcement", "notice"}

// NormalizeName standardizes a program title for duplicate matching by:
//  1. NFKC-normalizing and lower-casing
//  2. Stripping leading bracketed tags
//  3. Replacing punctuation with spaces
//  4. Dropping announcement boilerplate words
//  5. Collapsing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(norm.NFKC.String(name))
	if name == "" {
		return ""
	}
	name = strings.ToLower(name)

	for {
		stripped := bracketTagRe.ReplaceAllString(name, "")
		if stripped == name || strings.TrimSpace(stripped) == "" {
			break
		}
		name = stripped
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, name)

	fields := strings.Fields(name)
	kept := fields[:0]
	for _, f := range fields {
		if !isNoticeWord(f) {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		kept = fields
	}
	name = strings.Join(kept, " ")

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

func isNoticeWord(w string) bool {
	for _, n := range noticeWords {
		if w == n {
			return true
		}
	}
	return false
}

// bracketTags returns the contents of every leading bracketed tag of a title.
func bracketTags(title string) []string {
	title = norm.NFKC.String(title)
	var tags []string
	for {
		loc := bracketTagRe.FindStringIndex(title)
		if loc == nil {
			return tags
		}
		tag := strings.TrimSpace(title[loc[0]:loc[1]])
		tag = strings.TrimSpace(strings.Trim(tag, "[]()【】<>"))
		if tag != "" {
			tags = append(tags, tag)
		}
		title = title[loc[1]:]
	}
}
