// Package assemble turns filtered candidate messages into the context block
// handed to the language model, resolving raw user mentions to readable names.
package assemble

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// mentionRe matches workspace user mentions, with or without an inline
// display name, e.g. <@U123ABC> or <@U123ABC|alice>.
var mentionRe = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|([^>]+))?>`)

// Assembler builds model context from candidates. Mention lookups go through
// the workspace directory in one batch per build.
type Assembler struct {
	dir    storage.Directory
	logger *zap.Logger
}

func NewAssembler(dir storage.Directory, logger *zap.Logger) *Assembler {
	return &Assembler{dir: dir, logger: logger}
}

// Build renders candidates as attributed blocks separated by blank lines:
//
//	[#channel] (from user):
//	message text
//
// User mentions inside message text are rewritten to @name. Mentions that
// carry an inline name use it directly; bare ids are resolved against the
// directory in a single batched lookup. Unresolvable ids keep the raw id so
// the model still sees a stable token.
func (a *Assembler) Build(ctx context.Context, workspaceID string, candidates []models.Candidate) string {
	names := a.resolveMentions(ctx, workspaceID, candidates)

	blocks := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		channel := cand.Metadata.ChannelName
		if channel == "" {
			channel = "unknown"
		}
		user := cand.Metadata.UserName
		if user == "" {
			user = "unknown"
		}
		text := mentionRe.ReplaceAllStringFunc(cand.Text, func(m string) string {
			sub := mentionRe.FindStringSubmatch(m)
			if sub[2] != "" {
				return "@" + sub[2]
			}
			if name, ok := names[sub[1]]; ok {
				return "@" + name
			}
			return "@" + sub[1]
		})
		blocks = append(blocks, fmt.Sprintf("[#%s] (from %s):\n%s", channel, user, text))
	}
	return strings.Join(blocks, "\n\n")
}

// resolveMentions collects every bare mention id across the candidate set and
// looks them all up at once.
func (a *Assembler) resolveMentions(ctx context.Context, workspaceID string, candidates []models.Candidate) map[string]string {
	seen := make(map[string]bool)
	var ids []string
	for _, cand := range candidates {
		for _, sub := range mentionRe.FindAllStringSubmatch(cand.Text, -1) {
			if sub[2] != "" {
				continue // inline name, no lookup needed
			}
			if !seen[sub[1]] {
				seen[sub[1]] = true
				ids = append(ids, sub[1])
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := a.dir.Users(ctx, workspaceID, ids)
	if err != nil {
		a.logger.Warn("mention lookup failed", zap.String("workspace_id", workspaceID), zap.Error(err))
		return nil
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		switch {
		case u.DisplayName != "":
			names[u.ID] = u.DisplayName
		case u.RealName != "":
			names[u.ID] = u.RealName
		default:
			names[u.ID] = u.ID
		}
	}
	return names
}
