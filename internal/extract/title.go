package extract

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const titleScanLines = 30

var (
	phoneRe    = regexp.MustCompile(`(\+?\d[\d\s().-]{6,}\d)`)
	urlRe      = regexp.MustCompile(`(?i)(https?://|www\.)`)
	locationRe = regexp.MustCompile(`^[A-Z][a-zA-Z .]+,\s*[A-Z][a-zA-Z .]*$`)
)

var headingWords = map[string]bool{
	"summary": true, "objective": true, "experience": true, "education": true,
	"skills": true, "contents": true, "introduction": true, "overview": true,
	"abstract": true, "references": true, "appendix": true, "contact": true,
}

var orgTokens = []string{
	"inc", "ltd", "llc", "corp", "corporation", "company", "co.", "gmbh",
	"university", "institute", "department", "ministry", "agency", "authority",
	"association", "foundation", "policy", "policies", "handbook", "manual",
	"guidelines", "report",
}

// InferTitle picks a document title from extraction metadata and the opening
// lines of the text. Metadata wins when it looks like a real title; otherwise
// the first lines are scored and the best candidate returned. Empty string
// means no credible title was found.
func InferTitle(metadata map[string]string, text string) string {
	if meta := strings.TrimSpace(metadata["title"]); meta != "" && !looksLikeJunkTitle(meta) {
		return meta
	}

	var best string
	bestScore := 0
	seen := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		seen++
		if seen > titleScanLines {
			break
		}
		if score := scoreTitleCandidate(line); score > bestScore {
			best, bestScore = line, score
		}
	}
	return best
}

// scoreTitleCandidate rates one line: 3 for a person-name shape, 2 for
// organization-style text, 1 for plain reasonably-sized mixed-case text,
// 0 for lines that cannot be a title.
func scoreTitleCandidate(line string) int {
	n := len([]rune(line))
	if n < 4 || n > 90 {
		return 0
	}
	lower := strings.ToLower(line)
	if strings.Contains(line, "@") || phoneRe.MatchString(line) || urlRe.MatchString(line) {
		return 0
	}
	if headingWords[strings.TrimRight(lower, ":")] || strings.HasSuffix(line, ":") {
		return 0
	}
	if locationRe.MatchString(line) && len(strings.Fields(line)) <= 3 {
		return 0
	}

	words := strings.Fields(line)
	if isPersonName(words) {
		return 3
	}
	for _, tok := range orgTokens {
		if strings.Contains(lower, tok) {
			return 2
		}
	}
	if hasMixedCase(line) && len(words) >= 2 {
		return 1
	}
	return 0
}

func isPersonName(words []string) bool {
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if unicode.IsDigit(r) {
				return false
			}
		}
		lower := strings.ToLower(w)
		for _, tok := range orgTokens {
			if lower == tok {
				return false
			}
		}
	}
	return true
}

func hasMixedCase(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

func looksLikeJunkTitle(title string) bool {
	return NeedsTitleRepair(title, "") || urlRe.MatchString(title)
}

// NeedsTitleRepair reports whether a stored title is too weak to show users:
// a single short token, or one that merely echoes the upload's file name.
func NeedsTitleRepair(title, sourceName string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return true
	}
	if !strings.ContainsAny(title, " \t") && len([]rune(title)) <= 8 {
		return true
	}
	if sourceName != "" {
		stem := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
		if strings.EqualFold(title, stem) || strings.EqualFold(title, filepath.Base(sourceName)) {
			return true
		}
	}
	return false
}
