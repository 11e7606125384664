package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", Options{}))
	assert.Nil(t, Split("   \n\t  ", Options{}))
}

// A document with at least three numbered questions is chunked FAQ-style,
// one chunk per question with its answer attached.
func TestSplitFAQStyle(t *testing.T) {
	text := strings.Join([]string{
		"1. Why is the sky blue?",
		"Because of Rayleigh scattering.",
		"2. Why is grass green?",
		"Because of chlorophyll.",
		"3. Why is snow white?",
		"Because it reflects all wavelengths.",
	}, "\n")

	chunks := Split(text, Options{ChunkSize: 1000, MinChunkSize: 1})
	require.Len(t, chunks, 3)

	assert.Equal(t, MethodFAQ, chunks[0].Method)
	assert.Equal(t, "1. Why is the sky blue?", chunks[0].GroupTitle)
	assert.Contains(t, chunks[0].Content, "Why is the sky blue?")
	assert.Contains(t, chunks[0].Content, "Rayleigh scattering")
	assert.NotContains(t, chunks[0].Content, "chlorophyll")

	assert.Contains(t, chunks[1].Content, "Why is grass green?")
	assert.Contains(t, chunks[1].Content, "chlorophyll")

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

// An FAQ pair larger than the chunk size is still emitted whole.
func TestSplitFAQPairsAreAtomic(t *testing.T) {
	longAnswer := strings.Repeat("The answer continues with more detail. ", 20)
	text := strings.Join([]string{
		"1. What is covered?",
		longAnswer,
		"2. What is excluded?",
		longAnswer,
		"3. How do I file a claim?",
		longAnswer,
	}, "\n")

	chunks := Split(text, Options{ChunkSize: 300, MinChunkSize: 1})
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Greater(t, len(c.Content), 300)
	}
}

// Short question-answer pairs stay one per chunk under production sizing:
// the merge pass must never join two FAQ pairs into one chunk.
func TestSplitFAQPairsNotMergedUnderDefaults(t *testing.T) {
	text := strings.Join([]string{
		"1. Why X?",
		"Because Y.",
		"2. Why Z?",
		"Because W.",
		"3. Why Q?",
		"Because R.",
	}, "\n")

	chunks := Split(text, Options{ChunkSize: 1000})
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, MethodFAQ, c.Method, "chunk %d", i)
		assert.False(t, c.Merged, "chunk %d", i)
	}
	assert.NotContains(t, chunks[0].Content, "Why Z?")
	assert.NotContains(t, chunks[1].Content, "Why Q?")
}

func TestSplitTwoQuestionsStaysProse(t *testing.T) {
	text := "1. Why X?\nBecause Y.\n2. Why Z?\nBecause W."
	chunks := Split(text, Options{MinChunkSize: 1})
	require.NotEmpty(t, chunks)
	assert.Equal(t, MethodProse, chunks[0].Method)
}

func TestSplitProseHeadings(t *testing.T) {
	text := strings.Join([]string{
		"Intro paragraph before any heading, long enough to survive on its own merits.",
		"",
		"Vacation Policy",
		"Employees accrue two days per month of service.",
		"",
		"SICK LEAVE",
		"Sick leave requires a note after three consecutive days.",
	}, "\n")

	chunks := Split(text, Options{ChunkSize: 1000, MinChunkSize: 1})
	require.Len(t, chunks, 3)
	assert.Equal(t, DefaultGroupTitle, chunks[0].GroupTitle)
	assert.Equal(t, "Vacation Policy", chunks[1].GroupTitle)
	assert.Equal(t, "SICK LEAVE", chunks[2].GroupTitle)
	for _, c := range chunks {
		assert.Equal(t, MethodProse, c.Method)
	}
}

func TestSplitSizeBound(t *testing.T) {
	para := strings.Repeat("Each sentence here carries a modest amount of payload text. ", 8)
	text := para + "\n\n" + para + "\n\n" + para

	opts := Options{ChunkSize: 400, ChunkOverlap: 50, MinChunkSize: 1}
	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), opts.ChunkSize)
	}
}

func TestSplitOverlapCarry(t *testing.T) {
	para := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 30)
	chunks := Split(para, Options{ChunkSize: 300, ChunkOverlap: 60, MinChunkSize: 1})
	require.Greater(t, len(chunks), 1)

	// the second chunk starts with words carried over from the first
	tailWords := strings.Fields(chunks[0].Content)
	firstWord := strings.Fields(chunks[1].Content)[0]
	assert.Contains(t, tailWords, firstWord)
}

func TestSplitHardCutsUnbreakableRun(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Split(text, Options{ChunkSize: 1000, ChunkOverlap: 0, MinChunkSize: 1})
	require.GreaterOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1000)
	}
	var total int
	for _, c := range chunks {
		total += len(c.Content)
	}
	assert.Equal(t, 2500, total)
}

func TestSplitReconstructsContent(t *testing.T) {
	text := "First paragraph about onboarding.\n\nSecond paragraph about equipment.\n\nThird paragraph about offboarding."
	chunks := Split(text, Options{ChunkSize: 60, ChunkOverlap: 0, MinChunkSize: 1})

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Content)
		joined.WriteString(" ")
	}
	squash := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	assert.Equal(t, squash(text), squash(joined.String()))
}

func TestMergeSmallAdjacent(t *testing.T) {
	text := strings.Join([]string{
		"Scope",
		"Applies to all staff.",
		"",
		"Contact",
		"Ask the people team.",
	}, "\n")

	chunks := Split(text, Options{ChunkSize: 1000, MinChunkSize: 200})
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Merged)
	assert.Contains(t, chunks[0].Content, "Applies to all staff.")
	assert.Contains(t, chunks[0].Content, "Ask the people team.")
	assert.Equal(t, 0, chunks[0].Index)
}

func TestMergeIsSinglePass(t *testing.T) {
	chunks := []Chunk{
		{Content: strings.Repeat("a", 50)},
		{Content: strings.Repeat("b", 50)},
		{Content: strings.Repeat("c", 50)},
	}
	out := mergeSmall(chunks, Options{ChunkSize: 120, MinChunkSize: 200}.withDefaults())
	// first pair merges; the merged result is not merged again with the third
	require.Len(t, out, 2)
	assert.True(t, out[0].Merged)
	assert.False(t, out[1].Merged)
}

func TestIsHeadingRejectsTerminalPunctuation(t *testing.T) {
	assert.True(t, isHeading("Key Takeaways"))
	assert.False(t, isHeading("Key Takeaways."))
	assert.False(t, isHeading("Key Takeaways…"))
	assert.False(t, isHeading("Key Takeaways。"))
	assert.False(t, isHeading("Key Takeaways："))
}

func TestSentencePrepass(t *testing.T) {
	para := strings.Repeat("This sentence is number one. This sentence is number two! Is this number three? ", 10)
	chunks := Split(para, Options{ChunkSize: 200, ChunkOverlap: 0, MinChunkSize: 1, SentencePrepass: true})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, c.SentenceSplit)
		assert.LessOrEqual(t, len(c.Content), 200)
	}
}
