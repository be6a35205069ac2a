// Package quality filters low-signal messages out of retrieval candidates.
package quality

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// skipPatterns are system-notification phrases that carry no conversational
// content. Matching is exact-substring, case-insensitive.
var skipPatterns = []string{
	"has joined the channel",
	"has left the channel",
	"set the channel topic",
	"set the channel description",
	"uploaded a file",
	"renamed the channel",
	"archived the channel",
	"pinned a message",
}

// minTextLength is the minimum stripped length for a message to count as substantive.
const minTextLength = 10

// maxMentionRatio rejects messages that are mostly user mentions
// (e.g. "@user @user @user") with no real content.
const maxMentionRatio = 0.5

// Filter returns an order-preserving subsequence of candidates that pass the
// quality predicate, stopping once limit candidates are accepted. An empty
// result is a valid terminal state, not an error.
func Filter(candidates []models.Candidate, limit int) []models.Candidate {
	if limit <= 0 {
		return nil
	}

	kept := make([]models.Candidate, 0, limit)
	for _, c := range candidates {
		text := strings.ToLower(c.Text)

		if len(strings.TrimSpace(text)) < minTextLength {
			continue
		}
		if containsAny(text, skipPatterns) {
			continue
		}
		if mentionRatio(text) > maxMentionRatio {
			continue
		}

		kept = append(kept, c)
		if len(kept) >= limit {
			break
		}
	}
	return kept
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// mentionRatio is the number of mention tokens per word. Zero words means
// zero ratio; the length check has already rejected empty text anyway.
func mentionRatio(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return float64(strings.Count(text, "<@")) / float64(words)
}
