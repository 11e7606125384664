package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policychat/internal/ai"
	"policychat/internal/memory"
	"policychat/internal/model"
)

type searchCall struct {
	query         string
	minSimilarity float64
}

type fakeRetriever struct {
	calls   []searchCall
	results [][]SearchResult // popped per call; empty slice when exhausted
	err     error
}

func (f *fakeRetriever) Search(_ context.Context, _, query string, _ int, minSimilarity float64, _ []string) ([]SearchResult, error) {
	f.calls = append(f.calls, searchCall{query: query, minSimilarity: minSimilarity})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

type fakeLister struct {
	docs []model.Document
}

func (f *fakeLister) ListActiveByTenant(string) ([]model.Document, error) {
	return f.docs, nil
}

type fakeLLM struct {
	prompts  [][]ai.ChatMessage
	answer   string
	failures int // fail this many leading calls
}

func (f *fakeLLM) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.prompts = append(f.prompts, messages)
	if f.failures > 0 {
		f.failures--
		return "", fmt.Errorf("llm unavailable")
	}
	return f.answer, nil
}

func someResults() []SearchResult {
	return []SearchResult{{
		SegmentID:     "s1",
		DocumentTitle: "Leave Policy",
		Content:       "[Document: Leave Policy]\nEmployees accrue 2 days per month.",
		Similarity:    0.8,
	}}
}

func newTestAnswerService(r *fakeRetriever, llm *fakeLLM, mem *memory.Store, docs CorpusLister) *AnswerService {
	if docs == nil {
		docs = &fakeLister{}
	}
	return NewAnswerService(r, docs, mem, llm,
		ai.ChatConfig{Model: "mistral"},
		AnswerOptions{Provider: "ollama", MinSimilarity: 0.3})
}

func TestAnswerHappyPath(t *testing.T) {
	r := &fakeRetriever{results: [][]SearchResult{someResults()}}
	llm := &fakeLLM{answer: "You accrue 2 days per month."}
	svc := newTestAnswerService(r, llm, nil, nil)

	res, err := svc.Answer(context.Background(), AnswerInput{TenantID: "t1", Question: "What is the leave policy?"})
	require.NoError(t, err)

	assert.Equal(t, "You accrue 2 days per month.", res.Answer)
	assert.Equal(t, 1, res.SourceCount)
	assert.Equal(t, "ollama", res.Provider)
	assert.Equal(t, "mistral", res.Model)
	assert.False(t, res.HistoryUsed)

	require.Len(t, llm.prompts, 1)
	system := llm.prompts[0][0].Content
	assert.Contains(t, system, "[Source 1 - Leave Policy (relevance: 0.80)]")
}

// A vague follow-up right after a substantive question expands the
// retrieval query with that question.
func TestAnswerVagueFollowUpExpandsQuery(t *testing.T) {
	mem := memory.NewStore(memory.Config{RecentWindow: 6})
	mem.Append("sess", memory.RoleUser, "what is the leave policy?")
	mem.Append("sess", memory.RoleAssistant, "Two days per month.")

	r := &fakeRetriever{results: [][]SearchResult{someResults()}}
	llm := &fakeLLM{answer: "More detail here."}
	svc := newTestAnswerService(r, llm, mem, nil)

	_, err := svc.Answer(context.Background(), AnswerInput{
		TenantID: "t1", Question: "tell me more", SessionID: "sess",
	})
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.Contains(t, r.calls[0].query, "leave policy")
	assert.Contains(t, r.calls[0].query, "tell me more")
}

// The relaxed-floor retry fires only when expansion changed the query and
// the first pass came back empty.
func TestAnswerRelaxedRetryOnlyAfterExpansion(t *testing.T) {
	mem := memory.NewStore(memory.Config{RecentWindow: 6})
	mem.Append("sess", memory.RoleUser, "what is the travel policy?")

	r := &fakeRetriever{results: [][]SearchResult{{}, someResults()}}
	llm := &fakeLLM{answer: "ok"}
	svc := newTestAnswerService(r, llm, mem, nil)

	_, err := svc.Answer(context.Background(), AnswerInput{
		TenantID: "t1", Question: "elaborate", SessionID: "sess",
	})
	require.NoError(t, err)

	require.Len(t, r.calls, 2)
	assert.InDelta(t, 0.3, r.calls[0].minSimilarity, 1e-9)
	assert.InDelta(t, 0.2, r.calls[1].minSimilarity, 1e-9)
	assert.Equal(t, r.calls[0].query, r.calls[1].query)
}

func TestAnswerNoRetryWithoutExpansion(t *testing.T) {
	r := &fakeRetriever{}
	llm := &fakeLLM{answer: "I don't know."}
	svc := newTestAnswerService(r, llm, nil, nil)

	res, err := svc.Answer(context.Background(), AnswerInput{TenantID: "t1", Question: "what about llamas?"})
	require.NoError(t, err)
	assert.Len(t, r.calls, 1)
	assert.Equal(t, 0, res.SourceCount)
}

func TestAnswerRelaxedFloorNeverBelowMinimum(t *testing.T) {
	mem := memory.NewStore(memory.Config{RecentWindow: 6})
	mem.Append("sess", memory.RoleUser, "what is the travel policy?")

	r := &fakeRetriever{results: [][]SearchResult{{}, {}}}
	llm := &fakeLLM{answer: "ok"}
	svc := NewAnswerService(r, &fakeLister{}, mem, llm,
		ai.ChatConfig{Model: "m"},
		AnswerOptions{Provider: "p", MinSimilarity: 0.15})

	_, err := svc.Answer(context.Background(), AnswerInput{
		TenantID: "t1", Question: "go on", SessionID: "sess",
	})
	require.NoError(t, err)
	require.Len(t, r.calls, 2)
	assert.InDelta(t, 0.1, r.calls[1].minSimilarity, 1e-9)
}

// Meta-questions skip retrieval entirely and answer over a synthesized
// category-grouped corpus listing.
func TestAnswerMetaQuestion(t *testing.T) {
	lister := &fakeLister{docs: []model.Document{
		{Title: "401k Guide", Category: "Benefits"},
		{Title: "Dental Plan", Category: "Benefits"},
		{Title: "Expense Rules", Category: "Finance"},
	}}
	r := &fakeRetriever{}
	llm := &fakeLLM{answer: "We have three documents."}
	svc := newTestAnswerService(r, llm, nil, lister)

	res, err := svc.Answer(context.Background(), AnswerInput{TenantID: "t1", Question: "what documents do you have?"})
	require.NoError(t, err)

	assert.Empty(t, r.calls, "meta-questions must not hit retrieval")
	assert.Equal(t, 1, res.SourceCount)

	system := llm.prompts[0][0].Content
	assert.Contains(t, system, "Category: Benefits")
	assert.Contains(t, system, "- 401k Guide")
	assert.Contains(t, system, "Category: Finance")
}

func TestAnswerMemoryRoundTrip(t *testing.T) {
	mem := memory.NewStore(memory.Config{RecentWindow: 6})
	r := &fakeRetriever{results: [][]SearchResult{someResults()}}
	llm := &fakeLLM{answer: "Answer one."}
	svc := newTestAnswerService(r, llm, mem, nil)

	res, err := svc.Answer(context.Background(), AnswerInput{
		TenantID: "t1", Question: "what is the leave policy?", SessionID: "sess",
	})
	require.NoError(t, err)
	assert.False(t, res.HistoryUsed, "first turn has no prior history")

	recent := mem.Recent("sess")
	require.Len(t, recent, 2)
	assert.Equal(t, memory.RoleUser, recent[0].Role)
	assert.Equal(t, memory.RoleAssistant, recent[1].Role)

	// second turn now carries history into the prompt
	r.results = [][]SearchResult{someResults()}
	res, err = svc.Answer(context.Background(), AnswerInput{
		TenantID: "t1", Question: "and how does carryover work?", SessionID: "sess",
	})
	require.NoError(t, err)
	assert.True(t, res.HistoryUsed)
}

func TestAnswerFallsBackToSingleTurnThenApology(t *testing.T) {
	mem := memory.NewStore(memory.Config{RecentWindow: 6})
	mem.Append("sess", memory.RoleUser, "earlier question")
	mem.Append("sess", memory.RoleAssistant, "earlier answer")

	t.Run("single-turn rescue", func(t *testing.T) {
		r := &fakeRetriever{results: [][]SearchResult{someResults()}}
		llm := &fakeLLM{answer: "rescued", failures: 1}
		svc := newTestAnswerService(r, llm, mem, nil)

		res, err := svc.Answer(context.Background(), AnswerInput{
			TenantID: "t1", Question: "what is the policy?", SessionID: "sess",
		})
		require.NoError(t, err)
		assert.Equal(t, "rescued", res.Answer)
		assert.False(t, res.HistoryUsed)
		assert.Len(t, llm.prompts, 2)
	})

	t.Run("total failure yields fixed apology", func(t *testing.T) {
		r := &fakeRetriever{results: [][]SearchResult{someResults()}}
		llm := &fakeLLM{failures: 2}
		svc := newTestAnswerService(r, llm, mem, nil)

		res, err := svc.Answer(context.Background(), AnswerInput{
			TenantID: "t1", Question: "what is the policy?", SessionID: "sess",
		})
		require.NoError(t, err, "generation failure must not propagate")
		assert.Equal(t, fallbackAnswer, res.Answer)
	})
}

func TestAnswerValidation(t *testing.T) {
	svc := newTestAnswerService(&fakeRetriever{}, &fakeLLM{answer: "x"}, nil, nil)

	_, err := svc.Answer(context.Background(), AnswerInput{TenantID: "", Question: "q"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Answer(context.Background(), AnswerInput{TenantID: "t1", Question: "   "})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSanitizeText(t *testing.T) {
	in := "Hello\x00 <script>alert('x')</script>world\x07"
	out := sanitizeText(in, 100)
	assert.Equal(t, "Hello world", out)

	capped := sanitizeText(strings.Repeat("a", 50), 10)
	assert.Len(t, capped, 10)
}

func TestTruncateAtSentence(t *testing.T) {
	s := "First sentence here. Second sentence follows. Third one is cut midway through"
	out := truncateAtSentence(s, 60)
	assert.Equal(t, "First sentence here. Second sentence follows.", out)

	// no boundary inside the trailing 30%: plain hard cut
	noDots := strings.Repeat("x", 100)
	assert.Len(t, truncateAtSentence(noDots, 40), 40)

	short := "untouched"
	assert.Equal(t, short, truncateAtSentence(short, 100))
}
