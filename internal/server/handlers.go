package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request",
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("question", req.Question),
	)

	resp, err := s.engine.Ask(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrWorkspaceRequired) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleSyncUsers batch-upserts workspace users into the directory. Called
// by whatever exports the workspace roster; lookups degrade to raw ids for
// anything not synced yet.
func (s *Server) handleSyncUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID string        `json:"workspace_id"`
		Users       []models.User `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" {
		s.respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	for i := range req.Users {
		if req.Users[i].ID == "" {
			s.respondError(w, http.StatusBadRequest, "every user needs an id")
			return
		}
		if err := s.storage.UpsertUser(r.Context(), req.WorkspaceID, &req.Users[i]); err != nil {
			s.logger.Error("user sync failed",
				zap.String("workspace_id", req.WorkspaceID),
				zap.String("user_id", req.Users[i].ID),
				zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Info("synced users",
		zap.String("workspace_id", req.WorkspaceID),
		zap.Int("count", len(req.Users)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"synced": len(req.Users),
	})
}

// handleSyncChannels batch-upserts workspace channels into the directory.
func (s *Server) handleSyncChannels(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID string           `json:"workspace_id"`
		Channels    []models.Channel `json:"channels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" {
		s.respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	for i := range req.Channels {
		if req.Channels[i].ID == "" {
			s.respondError(w, http.StatusBadRequest, "every channel needs an id")
			return
		}
		if err := s.storage.UpsertChannel(r.Context(), req.WorkspaceID, &req.Channels[i]); err != nil {
			s.logger.Error("channel sync failed",
				zap.String("workspace_id", req.WorkspaceID),
				zap.String("channel_id", req.Channels[i].ID),
				zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Info("synced channels",
		zap.String("workspace_id", req.WorkspaceID),
		zap.Int("count", len(req.Channels)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"synced": len(req.Channels),
	})
}

// handleListConversations lists the most recently active threads in a
// workspace, optionally restricted to one channel.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		s.respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	channelID := r.URL.Query().Get("channel_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	threads, err := s.tracker.Recent(r.Context(), workspaceID, channelID, limit)
	if err != nil {
		s.logger.Error("recent conversations lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if threads == nil {
		threads = []models.ThreadSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"threads": threads,
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		s.respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	turns, err := s.tracker.History(r.Context(), workspaceID, id, limit)
	if err != nil {
		s.logger.Error("history retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"turns":           turns,
	})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		s.respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	if err := s.tracker.Clear(r.Context(), workspaceID, id); err != nil {
		s.logger.Error("conversation clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"conversation_id": id, "status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"status": "ok",
		"model":  s.config.LLM.Model,
	}

	if workspaceID := r.URL.Query().Get("workspace_id"); workspaceID != "" {
		userCount, err := s.storage.CountUsers(ctx, workspaceID)
		if err != nil {
			s.logger.Error("status: count users failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		channelCount, err := s.storage.CountChannels(ctx, workspaceID)
		if err != nil {
			s.logger.Error("status: count channels failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["users"] = userCount
		resp["channels"] = channelCount
	}

	resp["config"] = map[string]interface{}{
		"retrieval_base_url": s.config.Retrieval.BaseURL,
		"collection_prefix":  s.config.Retrieval.CollectionPrefix,
		"context_messages":   s.config.QA.ContextMessages,
		"database_path":      s.config.Storage.DatabasePath,
	}
	resp["disk_usage_bytes"] = storage.DatabaseSizeBytes(s.config.Storage.DatabasePath)

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
