package agent

import "unicode/utf8"

// Token budgeting uses a conservative character-based heuristic because the
// agent supports multiple LLM backends with different tokenizers:
// 1 token ≈ 4 characters (English prose). This under-estimates token counts
// to leave headroom for model-specific overhead.

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxToolResultTokens caps the size of a single tool-result
	// payload fed back to the model. Large documents can produce chunks
	// whose combined search results would crowd out the rest of the
	// conversation in small-context models.
	DefaultMaxToolResultTokens = 1500
)

// estimateTokens returns a rough token count for s using the character
// heuristic.
func estimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// truncateToolResult trims s so its estimated token count fits within
// maxTokens, appending a marker when content was dropped. The payload is
// JSON destined for the model, which tolerates a truncated tail, but the cut
// must not land mid-rune or the result would no longer be valid UTF-8.
func truncateToolResult(s string, maxTokens int) string {
	if maxTokens <= 0 || estimateTokens(s) <= maxTokens {
		return s
	}
	limit := maxTokens * charsPerToken
	if limit > len(s) {
		limit = len(s)
	}
	for limit > 0 && limit < len(s) && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "\n...[truncated]"
}
