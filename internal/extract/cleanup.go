package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Typographic characters normalized to their ASCII equivalents before any
// scoring or chunking sees the text.
var charReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`,
	"–", "-", "—", "-", "−", "-",
	"•", "- ", "●", "- ", "·", "- ", "", "- ",
	" ", " ", "…", "...",
)

var (
	dehyphenRe      = regexp.MustCompile(`(\p{L})-\n[ \t]*(\p{L})`)
	runOnSpaceRe    = regexp.MustCompile(`[ \t]+`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// CleanText normalizes one unit of extracted text: typographic characters,
// control characters, hyphenated line wraps, and run-on whitespace.
func CleanText(s string) string {
	s = charReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\r':
			// dropped; \r\n collapses to \n
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = dehyphenRe.ReplaceAllString(s, "$1$2")
	s = runOnSpaceRe.ReplaceAllString(s, " ")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var digitRe = regexp.MustCompile(`\d+`)

// maxEdgeLineRunes bounds how long a line can be and still count as a
// header or footer candidate. A full body sentence repeated across pages
// (boilerplate notices, shared section intros) is content, not chrome, and
// must survive stripping.
const maxEdgeLineRunes = 50

// StripRepeatedEdgeLines removes page headers and footers: a leading or
// trailing footer-shaped line whose digit-normalized form repeats on at
// least 60% of the units is dropped from every unit. Skipped when fewer
// than 3 units exist, where repetition is not statistically meaningful.
func StripRepeatedEdgeLines(units []string) []string {
	if len(units) < 3 {
		return units
	}

	normalize := func(line string) string {
		return strings.ToLower(digitRe.ReplaceAllString(strings.TrimSpace(line), "#"))
	}
	candidate := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		return trimmed != "" && utf8.RuneCountInString(trimmed) <= maxEdgeLineRunes
	}

	counts := map[string]int{}
	for _, u := range units {
		lines := strings.Split(u, "\n")
		seen := map[string]bool{}
		if first := lines[0]; candidate(first) {
			seen[normalize(first)] = true
		}
		if last := lines[len(lines)-1]; candidate(last) {
			seen[normalize(last)] = true
		}
		for form := range seen {
			counts[form]++
		}
	}

	threshold := int(math.Ceil(0.6 * float64(len(units))))
	repeated := map[string]bool{}
	for form, n := range counts {
		if n >= threshold {
			repeated[form] = true
		}
	}
	if len(repeated) == 0 {
		return units
	}

	out := make([]string, 0, len(units))
	for _, u := range units {
		lines := strings.Split(u, "\n")
		for len(lines) > 0 && candidate(lines[0]) && repeated[normalize(lines[0])] {
			lines = lines[1:]
		}
		for len(lines) > 0 && candidate(lines[len(lines)-1]) && repeated[normalize(lines[len(lines)-1])] {
			lines = lines[:len(lines)-1]
		}
		if trimmed := strings.TrimSpace(strings.Join(lines, "\n")); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
