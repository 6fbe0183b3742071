// Package amount extracts monetary values from free-form program text such as
// "최대 1억 5천만원", "₩50,000,000" or "$1.5 million".
package amount

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// tokenPattern matches a number with an optional unit suffix.
var tokenPattern = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(조|억|천만|백만|십만|만|천|billion|million|thousand|bn|mn|k)?`)

var unitScale = map[string]float64{
	"조":        1e12,
	"억":        1e8,
	"천만":       1e7,
	"백만":       1e6,
	"십만":       1e5,
	"만":        1e4,
	"천":        1e3,
	"billion":  1e9,
	"bn":       1e9,
	"million":  1e6,
	"mn":       1e6,
	"thousand": 1e3,
	"k":        1e3,
}

// Counting suffixes that mark a number as a quantity rather than money.
var quantitySuffixes = []string{"개월", "시간", "명", "개", "건", "회", "곳", "세", "년", "월", "일", "%", "배", "차", "호"}

var currencyPrefixes = []string{"₩", "$", "krw", "usd", "won", "€", "£", "¥"}

var currencySuffixes = []string{"원", "won", "krw", "usd", "달러", "dollars", "불"}

type match struct {
	start, end int
	value      float64
	scale      float64
	korean     bool
}

// Parse returns the largest monetary amount found in text, rounded to whole
// currency units. ok is false when nothing that looks like money is present.
func Parse(text string) (int64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	// Full-width digits and currency signs are common in HWP-converted notices.
	lower := strings.ToLower(width.Narrow.String(text))

	var found []match
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(lower, -1) {
		numText := strings.ReplaceAll(lower[loc[2]:loc[3]], ",", "")
		v, err := strconv.ParseFloat(numText, 64)
		if err != nil {
			continue
		}
		// Reject digits glued to letters, e.g. "covid19" or "h2".
		if loc[0] > 0 && isWordRune(lastRune(lower[:loc[0]])) {
			continue
		}
		unit := ""
		if loc[4] >= 0 {
			unit = lower[loc[4]:loc[5]]
		}
		end := loc[1]
		if unit != "" && isASCIIWord(unit) && end < len(lower) && isWordRune(firstRune(lower[end:])) {
			// "5 kinds" or "3 months": the letters belong to another word.
			unit = ""
			end = loc[3]
		}
		after := strings.TrimLeft(lower[end:], " \t")
		if hasAnyPrefix(after, quantitySuffixes) {
			continue
		}

		m := match{start: loc[0], end: end, value: v, scale: 1}
		if unit != "" {
			m.scale = unitScale[unit]
			m.korean = !isASCIIWord(unit)
		} else if !hasCurrencyContext(lower, loc[0], end) {
			continue
		}
		found = append(found, m)
	}
	if len(found) == 0 {
		return 0, false
	}

	var best float64
	for i := 0; i < len(found); {
		total := found[i].value * found[i].scale
		j := i + 1
		// Compound Korean amounts such as "1억 5천만" add up.
		for j < len(found) && found[j].korean && found[j-1].korean &&
			found[j].scale < found[j-1].scale &&
			strings.TrimSpace(lower[found[j-1].end:found[j].start]) == "" {
			total += found[j].value * found[j].scale
			j++
		}
		if total > best {
			best = total
		}
		i = j
	}
	if best <= 0 || best > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(best)), true
}

// hasCurrencyContext reports whether a bare number is marked as money by a
// currency sign before it or a currency word after it, or is written with
// thousands separators.
func hasCurrencyContext(s string, start, end int) bool {
	before := strings.TrimRight(s[:start], " \t")
	if hasAnySuffix(before, currencyPrefixes) {
		return true
	}
	after := strings.TrimLeft(s[end:], " \t")
	if hasAnyPrefix(after, currencySuffixes) {
		return true
	}
	return strings.Contains(s[start:end], ",")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, p := range suffixes {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || r == '_')
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
