// Package qa orchestrates the question-answering pipeline: intent detection,
// retrieval, quality filtering, context assembly, generation, and
// post-processing.
package qa

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/assemble"
	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/postprocess"
	"github.com/hyperjump/kotae/internal/quality"
	"github.com/hyperjump/kotae/internal/retrieval"
)

// overFetchFactor over-requests from the index so quality filtering still
// has enough candidates left to fill the context window.
const overFetchFactor = 3

// Engine answers questions against a workspace's message archive. The llm
// client may be nil, in which case answers come from the mock path. The
// tracker may be nil, which disables conversation history.
type Engine struct {
	searcher        retrieval.Searcher
	detector        *intent.Detector
	assembler       *assemble.Assembler
	processor       *postprocess.Processor
	tracker         *conversation.Tracker
	client          llm.Client
	contextMessages int
	logger          *zap.Logger
}

// NewEngine wires the pipeline stages together. contextMessages is the
// per-question source count used when a request does not set its own; zero
// or less falls back to models.DefaultContextMessages.
func NewEngine(
	searcher retrieval.Searcher,
	detector *intent.Detector,
	assembler *assemble.Assembler,
	processor *postprocess.Processor,
	tracker *conversation.Tracker,
	client llm.Client,
	contextMessages int,
	logger *zap.Logger,
) *Engine {
	if contextMessages <= 0 {
		contextMessages = models.DefaultContextMessages
	}
	return &Engine{
		searcher:        searcher,
		detector:        detector,
		assembler:       assembler,
		processor:       processor,
		tracker:         tracker,
		client:          client,
		contextMessages: contextMessages,
		logger:          logger,
	}
}

// Ask runs the full pipeline for one question. Retrieval failures surface as
// errors; generation failures degrade into a low-confidence answer that
// keeps the retrieved sources.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.AnswerResponse, error) {
	if req.MaxSources <= 0 {
		req.MaxSources = e.contextMessages
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("answering question",
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("question", req.Question),
	)

	// Caller-supplied filters win over detection.
	daysBack := req.DaysBack
	channel := req.ChannelFilter
	if daysBack == nil || channel == "" {
		detected := e.detector.Detect(ctx, req.WorkspaceID, req.Question)
		if daysBack == nil {
			daysBack = detected.DaysBack
		}
		if channel == "" {
			channel = detected.Channel
		}
	}

	candidates, err := e.searcher.Search(ctx, retrieval.SearchRequest{
		WorkspaceID: req.WorkspaceID,
		Query:       req.Question,
		NResults:    req.MaxSources * overFetchFactor,
		Channel:     channel,
		DaysBack:    daysBack,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	candidates = quality.Filter(candidates, req.MaxSources)
	if len(candidates) == 0 {
		return e.noResultsAnswer(daysBack, channel), nil
	}

	// Fold thread history into the question and record the user turn.
	question := req.Question
	if req.ConversationID != "" && e.tracker != nil {
		question = e.tracker.BuildPrompt(ctx, req.WorkspaceID, req.ConversationID, req.Question)
		e.tracker.Append(ctx, req.WorkspaceID, req.ConversationID, req.ChannelID, models.RoleUser, req.Question)
	}

	contextBlock := e.assembler.Build(ctx, req.WorkspaceID, candidates)

	var resp *models.AnswerResponse
	if e.client == nil {
		resp = e.mockAnswer(ctx, req.WorkspaceID, candidates)
	} else {
		resp = e.generate(ctx, req.WorkspaceID, question, contextBlock, candidates)
	}

	if req.ConversationID != "" && e.tracker != nil {
		e.tracker.Append(ctx, req.WorkspaceID, req.ConversationID, req.ChannelID, models.RoleAssistant, resp.Answer)
	}
	return resp, nil
}

func (e *Engine) generate(ctx context.Context, workspaceID, question, contextBlock string, candidates []models.Candidate) *models.AnswerResponse {
	raw, err := e.client.Generate(ctx, systemPrompt, userPrompt(question, contextBlock))
	if err != nil {
		e.logger.Error("answer generation failed", zap.Error(err))
		return &models.AnswerResponse{
			Answer:                fmt.Sprintf("I found relevant messages but encountered an error generating an answer: %v", err),
			Sources:               e.processor.Sources(ctx, workspaceID, candidates),
			Confidence:            0,
			ConfidenceExplanation: fmt.Sprintf("Error: %v", err),
			ProjectLinks:          []models.ProjectLink{},
			ContextUsed:           len(candidates),
		}
	}
	return e.processor.Process(ctx, workspaceID, raw, candidates, e.client.Model())
}

// mockAnswer summarizes the top candidate without a model. Used when no API
// key is configured so the rest of the pipeline stays testable end to end.
func (e *Engine) mockAnswer(ctx context.Context, workspaceID string, candidates []models.Candidate) *models.AnswerResponse {
	top := candidates[0]
	user := top.Metadata.UserName
	if user == "" {
		user = "someone"
	}
	channel := top.Metadata.ChannelName
	if channel == "" {
		channel = "unknown"
	}
	text := top.Text
	if len(text) > 200 {
		text = text[:200]
	}
	answer := fmt.Sprintf("Hey! Based on what I saw, %s mentioned this in #%s. %s", user, channel, text)

	return &models.AnswerResponse{
		Answer:                postprocess.AppendEvidence(answer, candidates),
		Sources:               e.processor.Sources(ctx, workspaceID, candidates),
		Confidence:            50,
		ConfidenceExplanation: "Mock mode - medium confidence estimate",
		ProjectLinks:          postprocess.ExtractProjectLinks(candidates),
		ContextUsed:           len(candidates),
		Model:                 "mock",
	}
}

// noResultsAnswer tells the user which filters were active so they can
// loosen them.
func (e *Engine) noResultsAnswer(daysBack *int, channel string) *models.AnswerResponse {
	var applied []string
	if daysBack != nil {
		applied = append(applied, fmt.Sprintf("last %d days", *daysBack))
	}
	if channel != "" {
		applied = append(applied, fmt.Sprintf("#%s channel", channel))
	}

	var answer string
	if len(applied) > 0 {
		answer = fmt.Sprintf("I couldn't find any substantive messages in the %s. "+
			"There may be very little activity during this period, or the messages might be "+
			"too short/simple to be useful (like emoji reactions or join notifications).\n\n"+
			"Try:\n• Asking about a different time period\n• Asking without specifying a channel\n• Asking about a more general topic",
			strings.Join(applied, " and "))
	} else {
		answer = "I couldn't find any relevant information in the Slack history to answer this question."
	}

	return &models.AnswerResponse{
		Answer:                answer,
		Sources:               []models.Source{},
		Confidence:            0,
		ConfidenceExplanation: "No relevant messages found after filtering",
		ProjectLinks:          []models.ProjectLink{},
		ContextUsed:           0,
	}
}
