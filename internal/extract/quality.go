package extract

import (
	"strings"
	"unicode"
)

// charsPerUnitSaturation is the per-unit character density at which the
// density component of the quality score saturates. A text-bearing page
// yields well above this; scanned-image PDFs yield near zero.
const charsPerUnitSaturation = 300

// QualityScore rates extracted text in [0,1]. It blends four signals:
// the ratio of printable characters, the ratio of word-like tokens, how
// close the mean token length sits to the natural-language band, and the
// character density per unit.
func QualityScore(text string, unitCount int) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	runes := []rune(text)
	printable := 0
	for _, r := range runes {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			printable++
		}
	}
	printableRatio := float64(printable) / float64(len(runes))

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	wordLike := 0
	totalLen := 0
	for _, tok := range tokens {
		n := 0
		letters := 0
		for _, r := range tok {
			n++
			if unicode.IsLetter(r) {
				letters++
			}
		}
		totalLen += n
		if letters*2 >= n {
			wordLike++
		}
	}
	wordRatio := float64(wordLike) / float64(len(tokens))

	avgLen := float64(totalLen) / float64(len(tokens))
	lenScore := 1.0
	switch {
	case avgLen < 3:
		lenScore = avgLen / 3
	case avgLen > 12:
		lenScore = 12 / avgLen
	}

	if unitCount < 1 {
		unitCount = 1
	}
	density := float64(len(runes)) / float64(unitCount)
	densityScore := density / charsPerUnitSaturation
	if densityScore > 1 {
		densityScore = 1
	}

	// word-likeness carries the most weight: cleanup already strips most
	// non-printable characters, so the printable ratio alone separates
	// little.
	return 0.2*printableRatio + 0.4*wordRatio + 0.2*lenScore + 0.2*densityScore
}
