// Package cli provides CLI utilities for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an answer response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, response *models.AnswerResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeAnswerText(w, response)
		return nil
	}
}

func writeAnswerText(w io.Writer, response *models.AnswerResponse) {
	fmt.Fprintf(w, "\n%s\n\n", response.Answer)
	fmt.Fprintf(w, "Confidence: %d%% (%s)\n", response.Confidence, response.ConfidenceExplanation)
	if response.Model != "" {
		fmt.Fprintf(w, "Model: %s | Context messages: %d\n", response.Model, response.ContextUsed)
	}

	if len(response.ProjectLinks) > 0 {
		fmt.Fprintln(w, "\nProject links:")
		for _, link := range response.ProjectLinks {
			fmt.Fprintf(w, "  [%s] %s (from #%s)\n", link.Type, link.URL, link.SourceChannel)
		}
	}

	if len(response.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, src := range response.Sources {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "[%d] #%s - %s (distance %.4f)\n", src.ReferenceNumber, src.Channel, src.User, src.Distance)
			fmt.Fprintf(w, "%s\n", Truncate(src.Text, 200))
		}
	}
}

// WriteHistory writes conversation turns to w in the given format.
func WriteHistory(w io.Writer, conversationID string, turns []models.Turn, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"conversation_id": conversationID,
			"turns":           turns,
		})
	default:
		if len(turns) == 0 {
			fmt.Fprintf(w, "No history for conversation %s\n", conversationID)
			return nil
		}
		fmt.Fprintf(w, "Conversation %s (%d turns):\n\n", conversationID, len(turns))
		for _, turn := range turns {
			label := "Assistant"
			if turn.Role == models.RoleUser {
				label = "User"
			}
			fmt.Fprintf(w, "[%s] %s\n%s\n\n", turn.CreatedAt.Format("Jan 2 15:04"), label, turn.Content)
		}
		return nil
	}
}

// WriteThreads writes recently active thread summaries to w in the given
// format.
func WriteThreads(w io.Writer, threads []models.ThreadSummary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"threads": threads})
	default:
		if len(threads) == 0 {
			fmt.Fprintln(w, "No recent conversations")
			return nil
		}
		fmt.Fprintf(w, "Recent conversations (%d):\n\n", len(threads))
		for _, th := range threads {
			channel := th.ChannelID
			if channel == "" {
				channel = "-"
			}
			fmt.Fprintf(w, "%s  %s  %s\n", th.LastUpdated.Format("Jan 2 15:04"), channel, th.ThreadTS)
		}
		return nil
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
