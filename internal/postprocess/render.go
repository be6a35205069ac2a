package postprocess

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	maxEvidenceEntries = 3
	maxSources         = 10
	evidenceQuoteMax   = 150
	evidenceQuoteCut   = 147
	sourceTextLen      = 200
)

// FriendlyTimestamp renders a message timestamp like "Dec 15, 2pm". Accepts
// Slack timestamps (unix seconds with a fractional part) and ISO 8601 times.
// Anything unparseable comes back as "recently".
func FriendlyTimestamp(ts string) string {
	t, ok := parseMessageTime(ts)
	if !ok {
		return "recently"
	}
	return fmt.Sprintf("%s %d, %s", t.Format("Jan"), t.Day(), hour12(t.Hour()))
}

func parseMessageTime(ts string) (time.Time, bool) {
	if dot := strings.Index(ts, "."); dot == 10 {
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return time.Unix(int64(f), 0), true
		}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func hour12(hour int) string {
	switch {
	case hour == 0:
		return "12am"
	case hour < 12:
		return fmt.Sprintf("%dam", hour)
	case hour == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", hour-12)
	}
}

// AppendEvidence attaches a "What I found:" section quoting up to three of
// the candidate messages. With no candidates the answer passes through
// untouched.
func AppendEvidence(answer string, candidates []models.Candidate) string {
	if len(candidates) == 0 {
		return answer
	}

	lines := []string{"\n\nWhat I found:"}
	for _, cand := range candidates[:min(len(candidates), maxEvidenceEntries)] {
		channel := orUnknown(cand.Metadata.ChannelName)
		user := orUnknown(cand.Metadata.UserName)
		// Quotes up to 150 chars render whole; longer ones cut at 147
		// plus an ellipsis.
		quote := strings.TrimSpace(cand.Text)
		if len(quote) > evidenceQuoteMax {
			quote = quote[:evidenceQuoteCut] + "..."
		}
		lines = append(lines, fmt.Sprintf("• %s's update in #%s (%s): \"%s\"",
			user, channel, FriendlyTimestamp(cand.Metadata.Timestamp), quote))
	}
	if len(candidates) > maxEvidenceEntries {
		lines = append(lines, fmt.Sprintf("\n...and %d more", len(candidates)-maxEvidenceEntries))
	}
	return answer + strings.Join(lines, "\n")
}

// BuildSources numbers up to ten candidates as citable sources. Usernames
// missing from message metadata are resolved through the directory in one
// batch; a failed lookup degrades to "unknown" rather than failing the
// answer.
func BuildSources(ctx context.Context, dir storage.Directory, logger *zap.Logger, workspaceID string, candidates []models.Candidate) []models.Source {
	top := candidates[:min(len(candidates), maxSources)]

	var ids []string
	seen := make(map[string]bool)
	for _, cand := range top {
		if cand.Metadata.UserName == "" && cand.Metadata.UserID != "" && !seen[cand.Metadata.UserID] {
			seen[cand.Metadata.UserID] = true
			ids = append(ids, cand.Metadata.UserID)
		}
	}

	names := make(map[string]string)
	if len(ids) > 0 && dir != nil {
		users, err := dir.Users(ctx, workspaceID, ids)
		if err != nil {
			logger.Warn("source username lookup failed", zap.String("workspace_id", workspaceID), zap.Error(err))
		}
		for _, u := range users {
			switch {
			case u.DisplayName != "":
				names[u.ID] = u.DisplayName
			case u.RealName != "":
				names[u.ID] = u.RealName
			default:
				names[u.ID] = u.UserName
			}
		}
	}

	sources := make([]models.Source, 0, len(top))
	for i, cand := range top {
		user := cand.Metadata.UserName
		if user == "" {
			user = names[cand.Metadata.UserID]
		}
		sources = append(sources, models.Source{
			ReferenceNumber: i + 1,
			Text:            utils.Truncate(cand.Text, sourceTextLen),
			Channel:         orUnknown(cand.Metadata.ChannelName),
			User:            orUnknown(user),
			Timestamp:       cand.Metadata.Timestamp,
			Distance:        cand.Distance,
		})
	}
	return sources
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
