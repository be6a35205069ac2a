// Package storage defines the persistence interface for the workspace directory
// (users and channels) consumed by mention and channel resolution.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Directory exposes workspace-scoped lookups over users and channels.
// Implementations must be safe for concurrent use; lookups for unknown ids
// return zero values rather than errors so callers can degrade gracefully.
type Directory interface {
	// ChannelName returns the channel's name, or "" when the channel is unknown.
	ChannelName(ctx context.Context, workspaceID, channelID string) (string, error)
	// Users returns directory rows for the given user ids. Unknown ids are
	// simply absent from the result.
	Users(ctx context.Context, workspaceID string, ids []string) ([]models.User, error)
}
