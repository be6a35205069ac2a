// Package retrieval wraps the semantic-search capability behind the Searcher
// interface. The index itself is external; this package only speaks its query
// boundary.
package retrieval

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchRequest describes one similarity query against a workspace's archive.
type SearchRequest struct {
	WorkspaceID string
	Query       string
	NResults    int
	// Channel restricts results to one channel name when non-empty.
	Channel string
	// DaysBack restricts results to messages newer than now minus this many
	// days. Nil means full history.
	DaysBack *int
}

// Searcher returns candidates ordered by ascending relevance distance
// (lower = more similar). Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]models.Candidate, error)
}
