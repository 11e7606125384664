package app

import "strings"

// metaQuestionPhrases match questions about the corpus itself rather than
// its content.
var metaQuestionPhrases = []string{
	"what documents",
	"which documents",
	"what files",
	"what do you have",
	"what do you know about your documents",
	"how many documents",
	"how many files",
	"list your documents",
	"list the documents",
	"list documents",
	"what can you answer",
	"what topics do you cover",
}

// vagueFollowUpPhrases are context-free continuations that carry no
// searchable content on their own.
var vagueFollowUpPhrases = []string{
	"tell me more",
	"more info",
	"more information",
	"more details",
	"more detail",
	"elaborate",
	"go on",
	"continue",
	"keep going",
	"what else",
	"expand on that",
	"can you expand",
	"anything else",
}

func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	return strings.TrimRight(q, "?!. ")
}

// IsMetaQuestion reports whether the question asks about the document
// corpus itself ("what documents do you have").
func IsMetaQuestion(question string) bool {
	q := normalizeQuestion(question)
	if q == "" {
		return false
	}
	for _, phrase := range metaQuestionPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// IsVagueFollowUp reports whether the question is a short continuation
// phrase that cannot be searched without prior context.
func IsVagueFollowUp(question string) bool {
	q := normalizeQuestion(question)
	if q == "" || len(q) > 50 {
		return false
	}
	for _, phrase := range vagueFollowUpPhrases {
		if q == phrase || strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}
