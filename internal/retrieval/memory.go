package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// MemorySearcher is an in-memory searcher using brute-force token overlap.
// Suitable for tests and local development when no search index is running.
type MemorySearcher struct {
	mu       sync.RWMutex
	messages map[string][]models.Candidate // keyed by workspace id
}

// NewMemorySearcher creates an empty in-memory searcher.
func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{messages: make(map[string][]models.Candidate)}
}

// Add stores a message in the given workspace.
func (m *MemorySearcher) Add(workspaceID, text string, meta models.MessageMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[workspaceID] = append(m.messages[workspaceID], models.Candidate{
		Text:     text,
		Metadata: meta,
	})
}

// Search scores stored messages by query-token overlap and returns the top
// NResults by ascending distance. Filters mirror the real index: channel name
// equality and a timestamp cutoff.
func (m *MemorySearcher) Search(ctx context.Context, req SearchRequest) ([]models.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTokens := tokenize(req.Query)
	var cutoff time.Time
	if req.DaysBack != nil {
		cutoff = time.Now().AddDate(0, 0, -*req.DaysBack)
	}

	var results []models.Candidate
	for _, msg := range m.messages[req.WorkspaceID] {
		if req.Channel != "" && msg.Metadata.ChannelName != req.Channel {
			continue
		}
		if req.DaysBack != nil {
			ts, ok := parseTimestamp(msg.Metadata.Timestamp)
			if !ok || ts.Before(cutoff) {
				continue
			}
		}
		msg.Distance = distance(queryTokens, tokenize(msg.Text))
		results = append(results, msg)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if req.NResults > 0 && len(results) > req.NResults {
		results = results[:req.NResults]
	}
	return results, nil
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		tokens[strings.Trim(f, ".,!?;:\"'()")] = true
	}
	return tokens
}

// distance is 1 minus the fraction of query tokens present in the document,
// so a message containing every query token has distance 0.
func distance(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 1
	}
	var hits int
	for tok := range query {
		if doc[tok] {
			hits++
		}
	}
	return 1 - float64(hits)/float64(len(query))
}

func parseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(ts, 64); err == nil {
		return time.Unix(int64(f), 0), true
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, true
	}
	return time.Time{}, false
}
