package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// ChromaSearcher queries a Chroma collection over its HTTP API. The server
// embeds query texts itself, so this client only ships strings and filters.
// Collections are named collectionPrefix + workspace id to keep workspaces
// isolated in the index.
type ChromaSearcher struct {
	baseURL          string
	collectionPrefix string
	httpClient       *http.Client
	logger           *zap.Logger
}

// NewChromaSearcher creates a searcher against the Chroma server at baseURL.
func NewChromaSearcher(baseURL, collectionPrefix string, timeout time.Duration, logger *zap.Logger) *ChromaSearcher {
	return &ChromaSearcher{
		baseURL:          baseURL,
		collectionPrefix: collectionPrefix,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logger,
	}
}

type chromaQuery struct {
	QueryTexts []string               `json:"query_texts"`
	NResults   int                    `json:"n_results"`
	Where      map[string]interface{} `json:"where,omitempty"`
	Include    []string               `json:"include"`
}

type chromaResponse struct {
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// Search runs one similarity query. Results arrive sorted by ascending
// distance; that ordering is passed through unchanged.
func (c *ChromaSearcher) Search(ctx context.Context, req SearchRequest) ([]models.Candidate, error) {
	body, err := json.Marshal(chromaQuery{
		QueryTexts: []string{req.Query},
		NResults:   req.NResults,
		Where:      buildWhere(req),
		Include:    []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s%s/query", c.baseURL, c.collectionPrefix, req.WorkspaceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("query search index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search index returned %d: %s", resp.StatusCode, snippet)
	}

	var out chromaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}

	docs := out.Documents[0]
	candidates := make([]models.Candidate, 0, len(docs))
	for i, text := range docs {
		cand := models.Candidate{Text: text}
		if len(out.Distances) > 0 && i < len(out.Distances[0]) {
			cand.Distance = out.Distances[0][i]
		}
		if len(out.Metadatas) > 0 && i < len(out.Metadatas[0]) {
			cand.Metadata = decodeMetadata(out.Metadatas[0][i])
		}
		candidates = append(candidates, cand)
	}
	c.logger.Debug("semantic search",
		zap.String("workspace_id", req.WorkspaceID),
		zap.Int("n_results", req.NResults),
		zap.Int("returned", len(candidates)),
	)
	return candidates, nil
}

// buildWhere translates the channel and lookback filters into a Chroma
// metadata predicate.
func buildWhere(req SearchRequest) map[string]interface{} {
	var clauses []map[string]interface{}
	if req.Channel != "" {
		clauses = append(clauses, map[string]interface{}{
			"channel_name": map[string]interface{}{"$eq": req.Channel},
		})
	}
	if req.DaysBack != nil {
		cutoff := time.Now().AddDate(0, 0, -*req.DaysBack).Unix()
		clauses = append(clauses, map[string]interface{}{
			"timestamp": map[string]interface{}{"$gte": float64(cutoff)},
		})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]interface{}{"$and": clauses}
	}
}

func decodeMetadata(m map[string]interface{}) models.MessageMetadata {
	return models.MessageMetadata{
		ChannelID:   metaString(m, "channel_id"),
		ChannelName: metaString(m, "channel_name"),
		UserID:      metaString(m, "user_id"),
		UserName:    metaString(m, "user_name"),
		Timestamp:   metaString(m, "timestamp"),
	}
}

// metaString reads a metadata value as a string. Chroma stores numbers as
// floats, so numeric timestamps are rendered back to a Slack-style ts.
func metaString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.6f", v)
	default:
		return ""
	}
}
