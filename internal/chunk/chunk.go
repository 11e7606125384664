// Package chunk splits cleaned document text into retrieval-sized,
// semantically coherent segments. FAQ-style documents keep each question
// with its answer; prose documents are grouped by headings and split on a
// recursive separator cascade.
package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MethodFAQ   = "faq"
	MethodProse = "prose"

	// DefaultGroupTitle names prose text that appears before any heading.
	DefaultGroupTitle = "General"
)

// Options control chunk sizing. Zero values fall back to the defaults.
type Options struct {
	ChunkSize       int  // maximum chunk length in bytes
	ChunkOverlap    int  // carry-over between consecutive pieces of one group
	MinChunkSize    int  // below this, a chunk is a merge candidate
	SentencePrepass bool // reflow prose to one sentence per line before splitting
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = o.ChunkSize / 5
	}
	if o.MinChunkSize <= 0 {
		o.MinChunkSize = 200
	}
	return o
}

// Chunk is one output segment plus the metadata describing how it was cut.
type Chunk struct {
	Content       string
	Index         int    // ordinal across the whole document
	GroupTitle    string // heading or question the chunk came from
	GroupIndex    int    // ordinal within its group
	Method        string // MethodFAQ or MethodProse
	SentenceSplit bool
	Merged        bool
}

// faqMarkerRe matches a numbered or lettered question line ("3. Why ...?",
// "b) What ...?") while plain numbered list items without a question mark
// stay prose.
var faqMarkerRe = regexp.MustCompile(`^\s*(?:\d{1,3}|[A-Za-z])[.)]\s+.*\?\s*$`)

// qMarkerRe matches an explicit "Q:" / "Q7." style question prefix.
var qMarkerRe = regexp.MustCompile(`^\s*[Qq]\d*\s*[:.)]\s*\S`)

// faqStyleMinMarkers is the number of question-marker lines at which a
// document is treated as FAQ-style.
const faqStyleMinMarkers = 3

func isQuestionLine(line string) bool {
	return faqMarkerRe.MatchString(line) || qMarkerRe.MatchString(line)
}

// Split chunks the text under the given options. Empty or whitespace-only
// input yields no chunks.
func Split(text string, opts Options) []Chunk {
	opts = opts.withDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	markers := 0
	for _, l := range lines {
		if isQuestionLine(l) {
			markers++
		}
	}

	var chunks []Chunk
	if markers >= faqStyleMinMarkers {
		chunks = splitFAQ(lines)
	} else {
		chunks = splitProse(lines, opts)
	}

	chunks = mergeSmall(chunks, opts)
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

// splitFAQ groups each question line with the answer text that follows it.
// Groups are atomic: a question is never separated from its answer, even
// when the pair exceeds the chunk size.
func splitFAQ(lines []string) []Chunk {
	var chunks []Chunk
	var title string
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content == "" {
			return
		}
		if title == "" {
			title = DefaultGroupTitle
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			GroupTitle: title,
			Method:     MethodFAQ,
		})
		body = body[:0]
	}

	for _, line := range lines {
		if isQuestionLine(line) {
			flush()
			title = strings.TrimSpace(line)
		}
		body = append(body, line)
	}
	flush()
	return chunks
}

// splitProse groups lines into heading-delimited sections, then size-splits
// each section with the separator cascade.
func splitProse(lines []string, opts Options) []Chunk {
	type section struct {
		title string
		body  []string
	}

	sections := []section{{title: DefaultGroupTitle}}
	for _, line := range lines {
		if isHeading(line) {
			sections = append(sections, section{title: strings.TrimSpace(line)})
			continue
		}
		last := &sections[len(sections)-1]
		last.body = append(last.body, line)
	}

	var chunks []Chunk
	for _, sec := range sections {
		content := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if content == "" {
			continue
		}
		sentenceSplit := false
		if opts.SentencePrepass && len(content) > opts.ChunkSize {
			content = sentencePerLine(content)
			sentenceSplit = true
		}
		for gi, piece := range splitSized(content, opts) {
			chunks = append(chunks, Chunk{
				Content:       piece,
				GroupTitle:    sec.title,
				GroupIndex:    gi,
				Method:        MethodProse,
				SentenceSplit: sentenceSplit,
			})
		}
	}
	return chunks
}

var headingNumberRe = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)

// isHeading applies the prose heading shape: short, no terminal
// punctuation, and either markdown-style, numbered, all-caps, or
// title-cased with few words.
func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	n := len([]rune(line))
	if n < 4 || n > 90 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(".!?,;:…。！？；：", last) {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	if headingNumberRe.MatchString(line) {
		return true
	}

	words := strings.Fields(line)
	if len(words) > 10 {
		return false
	}
	hasLower := false
	capitalized := 0
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			capitalized++
		}
		for _, c := range w {
			if unicode.IsLower(c) {
				hasLower = true
				break
			}
		}
	}
	if !hasLower && capitalized > 0 {
		return true // ALL CAPS heading
	}
	return capitalized*3 >= len(words)*2 && unicode.IsUpper([]rune(words[0])[0])
}

var sentenceBoundaryRe = regexp.MustCompile(`([.!?])\s+`)

func sentencePerLine(text string) string {
	return sentenceBoundaryRe.ReplaceAllString(text, "$1\n")
}

// separators, highest to lowest structural significance.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// splitSized cuts one group into pieces no longer than ChunkSize, with
// ChunkOverlap bytes of word-snapped carry-over between consecutive pieces.
func splitSized(text string, opts Options) []string {
	budget := opts.ChunkSize
	if opts.ChunkOverlap > 0 {
		// reserve room for the carry and the space joining it
		budget -= opts.ChunkOverlap + 1
	}
	pieces := splitRecursive(text, budget, separators)

	if opts.ChunkOverlap > 0 {
		for i := len(pieces) - 1; i > 0; i-- {
			carry := overlapTail(pieces[i-1], opts.ChunkOverlap)
			if carry != "" {
				pieces[i] = carry + " " + pieces[i]
			}
		}
	}
	return pieces
}

func splitRecursive(text string, budget int, seps []string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= budget {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardCut(text, budget)
	}

	parts := splitKeep(text, seps[0])
	var pieces []string
	var cur strings.Builder
	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			pieces = append(pieces, p)
		}
		cur.Reset()
	}
	for _, part := range parts {
		if len(part) > budget {
			flush()
			pieces = append(pieces, splitRecursive(part, budget, seps[1:])...)
			continue
		}
		if cur.Len()+len(part) > budget {
			flush()
		}
		cur.WriteString(part)
	}
	flush()
	return pieces
}

// splitKeep splits on sep, keeping the separator attached to the preceding
// part so joining the parts reconstructs the input.
func splitKeep(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hardCut slices text at the byte budget without breaking a UTF-8 sequence.
func hardCut(text string, budget int) []string {
	if budget < utf8.UTFMax {
		budget = utf8.UTFMax
	}
	var pieces []string
	for len(text) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// overlapTail returns the last n bytes of s, advanced to the next word
// boundary so the carry never starts mid-word.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// mergeSmall runs the single left-to-right merge pass: two adjacent chunks
// are merged when either is below the minimum size and the pair still fits
// the chunk size. A merged chunk is not reconsidered. FAQ chunks are atomic
// question-answer pairs and are never merged, no matter how short.
func mergeSmall(chunks []Chunk, opts Options) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	var out []Chunk
	for i := 0; i < len(chunks); i++ {
		if i+1 < len(chunks) {
			a, b := chunks[i], chunks[i+1]
			small := len(a.Content) < opts.MinChunkSize || len(b.Content) < opts.MinChunkSize
			atomic := a.Method == MethodFAQ || b.Method == MethodFAQ
			if small && !atomic && len(a.Content)+len(b.Content)+2 <= opts.ChunkSize {
				merged := a
				merged.Content = a.Content + "\n\n" + b.Content
				merged.Merged = true
				merged.SentenceSplit = a.SentenceSplit || b.SentenceSplit
				out = append(out, merged)
				i++
				continue
			}
		}
		out = append(out, chunks[i])
	}
	return out
}
