// Package intent classifies free-text questions into time-window and channel filters.
package intent

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/storage"
)

// Filters is the result of intent detection. Nil DaysBack means no temporal
// restriction (search full history); empty Channel means no channel filter.
type Filters struct {
	DaysBack *int
	Channel  string
}

// timePatterns maps time phrases to lookback windows in days. The table is
// ordered and the first phrase found in the question wins.
// "last week" looks back 14 days and "last month" 60 so the named period is
// fully inside the window.
var timePatterns = []struct {
	phrase string
	days   int
}{
	{"today", 1},
	{"yesterday", 2},
	{"this week", 7},
	{"past week", 7},
	{"last week", 14},
	{"this month", 30},
	{"past month", 30},
	{"last month", 60},
	{"recent", 7},
	{"recently", 7},
	{"latest", 7},
}

// channelKeywords is the fixed vocabulary of common channel names checked
// when the question carries no structured channel mention. Ordered;
// first match wins.
var channelKeywords = []string{
	"general", "standup", "hackathons", "random", "engineering",
	"design", "product", "marketing", "sales", "support",
	"dev", "testing", "qa", "operations", "announcements",
}

// channelMentionRe matches structured channel references: <#C123> or <#C123|name>.
var channelMentionRe = regexp.MustCompile(`<#([A-Z0-9]+)(?:\|([a-zA-Z0-9_-]+))?>`)

// Detector derives optional time and channel filters from a question.
type Detector struct {
	store  storage.Directory
	logger *zap.Logger
}

// NewDetector creates a detector. store may be nil, in which case channel-id
// mentions without an inline name resolve to the raw id.
func NewDetector(store storage.Directory, logger *zap.Logger) *Detector {
	return &Detector{store: store, logger: logger}
}

// Detect classifies the question. It never fails: lookup errors degrade to
// raw identifiers.
func (d *Detector) Detect(ctx context.Context, workspaceID, question string) Filters {
	return Filters{
		DaysBack: DetectTimeFilter(question),
		Channel:  d.detectChannelFilter(ctx, workspaceID, question),
	}
}

// DetectTimeFilter returns the lookback window implied by the question, or
// nil when the question carries no time phrase.
func DetectTimeFilter(question string) *int {
	lower := strings.ToLower(question)
	for _, p := range timePatterns {
		if strings.Contains(lower, p.phrase) {
			days := p.days
			return &days
		}
	}
	return nil
}

// detectChannelFilter returns the channel name the question refers to, or "".
// A structured mention takes priority over the keyword vocabulary.
func (d *Detector) detectChannelFilter(ctx context.Context, workspaceID, question string) string {
	if m := channelMentionRe.FindStringSubmatch(question); m != nil {
		channelID, inlineName := m[1], m[2]
		if inlineName != "" {
			return inlineName
		}
		if d.store != nil {
			name, err := d.store.ChannelName(ctx, workspaceID, channelID)
			if err != nil {
				d.logger.Warn("channel name lookup failed",
					zap.String("channel_id", channelID), zap.Error(err))
				return channelID
			}
			if name != "" {
				return name
			}
		}
		return channelID
	}

	lower := strings.ToLower(question)
	for _, channel := range channelKeywords {
		if strings.Contains(lower, "#"+channel) ||
			strings.Contains(lower, channel+" channel") ||
			strings.Contains(lower, "in "+channel) {
			return channel
		}
	}
	return ""
}
