// Package postprocess turns raw model output into the final answer payload:
// confidence extraction, Slack-format cleanup, evidence rendering, source
// attribution, and project link discovery.
package postprocess

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// Processor assembles answer responses. It needs the workspace directory for
// username lookups when message metadata is incomplete.
type Processor struct {
	dir    storage.Directory
	logger *zap.Logger
}

func NewProcessor(dir storage.Directory, logger *zap.Logger) *Processor {
	return &Processor{dir: dir, logger: logger}
}

// Process builds the response for a successful generation: confidence comes
// out of the raw text, the text is cleaned, and evidence plus sources are
// rendered from the candidates the answer was grounded on.
func (p *Processor) Process(ctx context.Context, workspaceID, raw string, candidates []models.Candidate, model string) *models.AnswerResponse {
	confidence, explanation := ExtractConfidence(raw)
	answer := CleanAnswer(raw)

	return &models.AnswerResponse{
		Answer:                AppendEvidence(answer, candidates),
		Sources:               BuildSources(ctx, p.dir, p.logger, workspaceID, candidates),
		Confidence:            confidence,
		ConfidenceExplanation: explanation,
		ProjectLinks:          ExtractProjectLinks(candidates),
		ContextUsed:           len(candidates),
		Model:                 model,
	}
}

// Sources exposes source rendering for answer paths that skip generation.
func (p *Processor) Sources(ctx context.Context, workspaceID string, candidates []models.Candidate) []models.Source {
	return BuildSources(ctx, p.dir, p.logger, workspaceID, candidates)
}
