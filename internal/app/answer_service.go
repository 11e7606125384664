package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"policychat/internal/ai"
	"policychat/internal/memory"
	"policychat/internal/model"
	"policychat/internal/pkg/logger"
)

// LLMClient is the chat-completion surface the orchestrator needs.
type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// Retriever is the retrieval surface the orchestrator needs.
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, limit int, minSimilarity float64, documentIDs []string) ([]SearchResult, error)
}

// CorpusLister supplies the active-document listing for meta-questions.
type CorpusLister interface {
	ListActiveByTenant(tenantID string) ([]model.Document, error)
}

const systemPreamble = "You are a helpful assistant answering questions " +
	"about an organization's internal documents. Answer using only the " +
	"provided context. When the context does not contain the answer, say " +
	"so plainly instead of guessing. Be concise."

const fallbackAnswer = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

// AnswerService turns a question plus retrieved passages and conversation
// memory into one language-model request and post-processes the response.
type AnswerService struct {
	retriever Retriever
	docs      CorpusLister
	memory    *memory.Store // nil disables conversational memory
	llm       LLMClient
	llmCfg    ai.ChatConfig
	provider  string

	retrievalLimit   int
	minSimilarity    float64
	maxContextChars  int
	maxQuestionChars int
	maxAnswerChars   int
}

type AnswerOptions struct {
	Provider         string
	RetrievalLimit   int
	MinSimilarity    float64
	MaxContextChars  int
	MaxQuestionChars int
	MaxAnswerChars   int
}

func NewAnswerService(
	retriever Retriever,
	docs CorpusLister,
	mem *memory.Store,
	llm LLMClient,
	llmCfg ai.ChatConfig,
	opts AnswerOptions,
) *AnswerService {
	if opts.RetrievalLimit <= 0 {
		opts.RetrievalLimit = 5
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.3
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 8000
	}
	if opts.MaxQuestionChars <= 0 {
		opts.MaxQuestionChars = 2000
	}
	if opts.MaxAnswerChars <= 0 {
		opts.MaxAnswerChars = 10000
	}
	return &AnswerService{
		retriever:        retriever,
		docs:             docs,
		memory:           mem,
		llm:              llm,
		llmCfg:           llmCfg,
		provider:         opts.Provider,
		retrievalLimit:   opts.RetrievalLimit,
		minSimilarity:    opts.MinSimilarity,
		maxContextChars:  opts.MaxContextChars,
		maxQuestionChars: opts.MaxQuestionChars,
		maxAnswerChars:   opts.MaxAnswerChars,
	}
}

type AnswerInput struct {
	TenantID  string
	Question  string
	SessionID string
}

type AnswerResult struct {
	Answer      string `json:"answer"`
	SourceCount int    `json:"source_count"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	HistoryUsed bool   `json:"history_used"`
}

func (s *AnswerService) Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error) {
	if input.TenantID == "" {
		return nil, ErrInvalidInput
	}
	question := sanitizeText(input.Question, s.maxQuestionChars)
	if question == "" {
		return nil, ErrInvalidQuery
	}

	results, err := s.retrieve(ctx, input.TenantID, input.SessionID, question)
	if err != nil {
		return nil, err
	}

	contextText := buildContext(results, s.maxContextChars)

	var history []memory.Message
	if s.memoryEnabled(input.SessionID) {
		history = s.memory.History(input.SessionID)
	}

	answer, historyUsed, genErr := s.generate(ctx, contextText, question, history)
	if genErr != nil {
		logger.For("answer").Warnf("generation failed, returning fallback: %v", genErr)
		answer = fallbackAnswer
		historyUsed = false
	}
	answer = sanitizeText(answer, s.maxAnswerChars)
	if answer == "" {
		answer = fallbackAnswer
	}

	if s.memoryEnabled(input.SessionID) {
		s.memory.Append(input.SessionID, memory.RoleUser, question)
		s.memory.Append(input.SessionID, memory.RoleAssistant, answer)
	}

	return &AnswerResult{
		Answer:      answer,
		SourceCount: len(results),
		Provider:    s.provider,
		Model:       s.llmCfg.Model,
		HistoryUsed: historyUsed,
	}, nil
}

func (s *AnswerService) memoryEnabled(sessionID string) bool {
	return s.memory != nil && sessionID != ""
}

// retrieve runs the retrieval step, including the meta-question
// short-circuit, vague-follow-up query expansion, and the relaxed-floor
// retry when expansion came up empty.
func (s *AnswerService) retrieve(ctx context.Context, tenantID, sessionID, question string) ([]SearchResult, error) {
	if IsMetaQuestion(question) {
		listing, err := s.corpusListing(tenantID)
		if err != nil {
			return nil, err
		}
		return []SearchResult{{
			DocumentTitle: "Document Catalog",
			Content:       listing,
			Similarity:    1.0,
		}}, nil
	}

	query := question
	expanded := false
	if s.memoryEnabled(sessionID) && IsVagueFollowUp(question) {
		if prior := s.lastSubstantiveUserMessage(sessionID); prior != "" {
			query = prior + " " + question
			expanded = true
		}
	}

	results, err := s.retriever.Search(ctx, tenantID, query, s.retrievalLimit, s.minSimilarity, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && expanded {
		// the retry fires only for expanded queries, so a genuinely
		// unanswerable question still returns empty
		relaxed := s.minSimilarity - 0.1
		if relaxed < 0.1 {
			relaxed = 0.1
		}
		results, err = s.retriever.Search(ctx, tenantID, query, s.retrievalLimit, relaxed, nil)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// lastSubstantiveUserMessage scans recent memory backward for the newest
// user message that is not itself a vague follow-up.
func (s *AnswerService) lastSubstantiveUserMessage(sessionID string) string {
	recent := s.memory.Recent(sessionID)
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role != memory.RoleUser {
			continue
		}
		if IsVagueFollowUp(m.Content) {
			continue
		}
		return m.Content
	}
	return ""
}

func (s *AnswerService) corpusListing(tenantID string) (string, error) {
	docs, err := s.docs.ListActiveByTenant(tenantID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "The document corpus is currently empty.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The corpus contains %d document(s), grouped by category:\n", len(docs))
	current := "\x00"
	for _, d := range docs {
		category := d.Category
		if category == "" {
			category = "Uncategorized"
		}
		if category != current {
			fmt.Fprintf(&b, "\nCategory: %s\n", category)
			current = category
		}
		fmt.Fprintf(&b, "- %s\n", d.Title)
	}
	return b.String(), nil
}

// generate tries a memory-backed prompt first, falls back to a single-turn
// prompt, and only then reports failure.
func (s *AnswerService) generate(
	ctx context.Context,
	contextText, question string,
	history []memory.Message,
) (answer string, historyUsed bool, err error) {
	system := systemPreamble
	if contextText != "" {
		system += "\n\nContext from the document corpus:\n" + contextText
	} else {
		system += "\n\nNo relevant passages were found for this question."
	}

	if len(history) > 0 {
		messages := make([]ai.ChatMessage, 0, len(history)+2)
		messages = append(messages, ai.ChatMessage{Role: ai.RoleSystem, Content: system})
		for _, h := range history {
			messages = append(messages, ai.ChatMessage{Role: h.Role, Content: h.Content})
		}
		messages = append(messages, ai.ChatMessage{Role: ai.RoleUser, Content: question})

		answer, err = s.llm.Complete(ctx, s.llmCfg, messages)
		if err == nil {
			return answer, true, nil
		}
		logger.For("answer").Warnf("memory-backed generation failed, retrying single-turn: %v", err)
	}

	single := []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: question},
	}
	answer, err = s.llm.Complete(ctx, s.llmCfg, single)
	if err != nil {
		return "", false, err
	}
	return answer, false, nil
}

// buildContext renders results as labeled source blocks and truncates the
// whole thing to the character budget, preferring a sentence boundary in
// the trailing 30% of the budget.
func buildContext(results []SearchResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source %d - %s (relevance: %.2f)]\n%s",
			i+1, r.DocumentTitle, r.Similarity, r.Content)
	}
	return truncateAtSentence(strings.Join(blocks, "\n\n"), maxChars)
}

func truncateAtSentence(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r == utf8.RuneError && size == 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	floor := int(float64(max) * 0.7)
	if idx := strings.LastIndexAny(cut, ".!?"); idx >= floor {
		return cut[:idx+1]
	}
	return cut
}

var scriptBlockRe = regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`)
var markupTagRe = regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|style)[^>]*>`)

// sanitizeText strips control characters and script-like markup, then caps
// the text to max characters.
func sanitizeText(s string, max int) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = markupTagRe.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	s = strings.TrimSpace(b.String())

	if max > 0 {
		runes := []rune(s)
		if len(runes) > max {
			s = strings.TrimSpace(string(runes[:max]))
		}
	}
	return s
}

// NewLLMSummarizer adapts the chat client into a rolling-summary function
// for the memory store.
func NewLLMSummarizer(llm LLMClient, cfg ai.ChatConfig) memory.Summarizer {
	return func(priorSummary, transcript string) (string, error) {
		prompt := "Update the running conversation summary. Keep it under 150 words " +
			"and preserve concrete facts the user may refer back to.\n\n" +
			"Current summary:\n" + orNone(priorSummary) +
			"\n\nNew messages:\n" + transcript
		messages := []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: "You summarize conversations accurately and concisely."},
			{Role: ai.RoleUser, Content: prompt},
		}
		return llm.Complete(context.Background(), cfg, messages)
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
