package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

// citationPattern matches inline citation markers like [1].
var citationPattern = regexp.MustCompile(`\[\d+\]`)

// actionPhrases are the imperative markers scanned for when extracting a
// recommended action from an answer.
var actionPhrases = []string{
	"next step:",
	"you should",
	"i recommend",
	"recommend",
	"consider",
}

// noResultsAction is suggested when a query matches nothing in the store.
const noResultsAction = "Index more notes covering this topic, then ask again."

// buildPrompt renders the retrieved notes into a context block and
// instructs the model to cite sources by index.
func buildPrompt(query string, hits []vector.SearchResult) string {
	var b strings.Builder

	b.WriteString("You are answering a question from a personal knowledge base.\n")
	b.WriteString("Use only the numbered notes below and cite them inline by index, e.g. [1].\n\n")
	b.WriteString("Notes:\n")

	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, hit.ID, hit.Content)
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)

	return b.String()
}

// scoreConfidence computes the heuristic answer confidence: similarity of
// the top hit, result count, and the presence of inline citation markers,
// capped at 1.0.
func scoreConfidence(topScore float32, resultCount int, answer string) float64 {
	var c float64

	switch {
	case topScore > 0.8:
		c += 0.4
	case topScore > 0.6:
		c += 0.2
	}

	switch {
	case resultCount >= 3:
		c += 0.3
	case resultCount >= 1:
		c += 0.1
	}

	if citationPattern.MatchString(answer) {
		c += 0.3
	}

	if c > 1.0 {
		c = 1.0
	}

	return c
}

// extractRecommendedAction pulls an actionable sentence out of the answer,
// or returns "" when no imperative phrase is present.
func extractRecommendedAction(answer string) string {
	lower := strings.ToLower(answer)

	for _, phrase := range actionPhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}

		start := idx
		if phrase == "next step:" {
			start = idx + len(phrase)
		}

		rest := answer[start:]
		if end := strings.IndexAny(rest, ".\n"); end >= 0 {
			rest = rest[:end]
		}

		if action := strings.TrimSpace(rest); action != "" {
			return action
		}
	}

	return ""
}

// snippet truncates content for inclusion in evidence.
func snippet(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return strings.TrimSpace(content[:maxLen]) + "..."
}
