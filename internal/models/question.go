package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWorkspaceRequired is returned when a request arrives without a workspace
// scope. Workspace isolation is a hard requirement, so this is treated as a
// configuration error rather than an empty-result case.
var ErrWorkspaceRequired = errors.New("workspace_id is required for question answering")

// Ask request limits.
const (
	DefaultContextMessages = 10
	MaxContextMessages     = 25
)

// AskRequest is a question submitted against a workspace's message archive.
// ChannelFilter and DaysBack override intent detection when set by the caller.
type AskRequest struct {
	Question       string `json:"question"`
	WorkspaceID    string `json:"workspace_id"`
	ChannelFilter  string `json:"channel_filter,omitempty"`
	DaysBack       *int   `json:"days_back,omitempty"`
	MaxSources     int    `json:"max_sources,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
}

// Validate ensures the request has a question and a workspace scope, and
// normalizes MaxSources into [1, MaxContextMessages].
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if strings.TrimSpace(r.WorkspaceID) == "" {
		return ErrWorkspaceRequired
	}
	if r.MaxSources <= 0 {
		r.MaxSources = DefaultContextMessages
	}
	if r.MaxSources > MaxContextMessages {
		r.MaxSources = MaxContextMessages
	}
	return nil
}
