package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/assemble"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/postprocess"
	"github.com/hyperjump/kotae/internal/qa"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *retrieval.MemorySearcher) {
	t.Helper()
	logger := zap.NewNop()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "workspace.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "workspace.db")

	tracker, err := conversation.NewTracker(filepath.Join(dir, "conv.db"), cfg.QA.HistoryLimit, logger)
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	searcher := retrieval.NewMemorySearcher()
	engine := qa.NewEngine(
		searcher,
		intent.NewDetector(store, logger),
		assemble.NewAssembler(store, logger),
		postprocess.NewProcessor(store, logger),
		tracker,
		nil,
		cfg.QA.ContextMessages,
		logger,
	)

	return NewServer(engine, tracker, store, cfg, logger), searcher
}

func TestHandleAsk(t *testing.T) {
	srv, searcher := newTestServer(t)
	searcher.Add("W1", "the deploy pipeline is fixed and running", models.MessageMetadata{
		ChannelName: "engineering", UserName: "alice",
	})

	body, _ := json.Marshal(models.AskRequest{
		Question:    "is the deploy pipeline fixed?",
		WorkspaceID: "W1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var resp models.AnswerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer == "" || resp.ContextUsed != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleAskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing question", `{"workspace_id":"W1"}`},
		{"missing workspace", `{"question":"what shipped?"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestConversationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	srv.tracker.Append(ctx, "W1", "thread-1", "C1", models.RoleUser, "what shipped?")
	srv.tracker.Append(ctx, "W1", "thread-1", "C1", models.RoleAssistant, "the parser fix")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/thread-1?workspace_id=W1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got struct {
		ConversationID string        `json:"conversation_id"`
		Turns          []models.Turn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ConversationID != "thread-1" || len(got.Turns) != 2 {
		t.Errorf("unexpected payload: %+v", got)
	}

	// Missing workspace scope is a client error.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/thread-1", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing workspace_id: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/thread-1?workspace_id=W1", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	turns, _ := srv.tracker.History(ctx, "W1", "thread-1", 0)
	if len(turns) != 0 {
		t.Errorf("thread not cleared: %+v", turns)
	}
}

func TestDirectorySync(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	body := `{"workspace_id":"W1","users":[
		{"id":"U1","user_name":"alice","display_name":"Alice"},
		{"id":"U2","user_name":"bob"}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/directory/users", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("users sync status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["synced"] != float64(2) {
		t.Errorf("synced = %v, want 2", resp["synced"])
	}

	body = `{"workspace_id":"W1","channels":[{"id":"C1","name":"engineering"}]}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/directory/channels", bytes.NewReader([]byte(body)))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("channels sync status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Synced entries are visible to directory lookups.
	name, err := srv.storage.ChannelName(ctx, "W1", "C1")
	if err != nil || name != "engineering" {
		t.Errorf("ChannelName = (%q, %v), want engineering", name, err)
	}
	users, err := srv.storage.Users(ctx, "W1", []string{"U1"})
	if err != nil || len(users) != 1 || users[0].DisplayName != "Alice" {
		t.Errorf("Users = (%+v, %v)", users, err)
	}

	// Re-syncing updates in place rather than duplicating.
	body = `{"workspace_id":"W1","channels":[{"id":"C1","name":"eng-renamed"}]}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/directory/channels", bytes.NewReader([]byte(body)))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("channels re-sync status = %d", rec.Code)
	}
	if count, _ := srv.storage.CountChannels(ctx, "W1"); count != 1 {
		t.Errorf("CountChannels = %d, want 1", count)
	}
	if name, _ := srv.storage.ChannelName(ctx, "W1", "C1"); name != "eng-renamed" {
		t.Errorf("ChannelName after re-sync = %q", name)
	}
}

func TestDirectorySyncValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"users malformed json", "/api/v1/directory/users", "{not json"},
		{"users missing workspace", "/api/v1/directory/users", `{"users":[{"id":"U1"}]}`},
		{"users missing id", "/api/v1/directory/users", `{"workspace_id":"W1","users":[{"user_name":"alice"}]}`},
		{"channels missing workspace", "/api/v1/directory/channels", `{"channels":[{"id":"C1"}]}`},
		{"channels missing id", "/api/v1/directory/channels", `{"workspace_id":"W1","channels":[{"name":"general"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tt.path, bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListConversations(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	srv.tracker.Append(ctx, "W1", "thread-1", "C1", models.RoleUser, "what shipped?")
	srv.tracker.Append(ctx, "W1", "thread-2", "C2", models.RoleUser, "who is on call?")
	srv.tracker.Append(ctx, "W2", "thread-3", "C1", models.RoleUser, "other workspace")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?workspace_id=W1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Threads []models.ThreadSummary `json:"threads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Threads) != 2 {
		t.Fatalf("threads = %+v, want 2 entries", got.Threads)
	}

	// Channel filter narrows the listing.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations?workspace_id=W1&channel_id=C2", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered status = %d", rec.Code)
	}
	got.Threads = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Threads) != 1 || got.Threads[0].ThreadTS != "thread-2" {
		t.Errorf("filtered threads = %+v", got.Threads)
	}

	// Missing workspace scope is a client error.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing workspace_id: status = %d, want 400", rec.Code)
	}

	// An empty workspace lists cleanly.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations?workspace_id=W9", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty workspace status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"threads":[]`)) {
		t.Errorf("empty workspace should return an empty array: %s", rec.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	srv.storage.UpsertUser(ctx, "W1", &models.User{ID: "U1", UserName: "alice"})
	srv.storage.UpsertChannel(ctx, "W1", &models.Channel{ID: "C1", Name: "general"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status?workspace_id=W1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["users"] != float64(1) || resp["channels"] != float64(1) {
		t.Errorf("counts: %+v", resp)
	}
	if resp["model"] == "" {
		t.Error("missing model in status")
	}
	if _, ok := resp["config"]; !ok {
		t.Error("missing config echo in status")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequireToken(t *testing.T) {
	t.Setenv("KOTAE_API_TOKEN", "sekrit")
	srv, _ := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	// Health stays open for probes.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health with auth enabled: status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.Server.RateLimitPerSec = 1
	srv.config.Server.RateLimitBurst = 2
	router := srv.Router()

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("burst exhausted: status = %d, want 429", lastCode)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh client: status = %d, want 200", rec.Code)
	}
}
