// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/assemble"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/postprocess"
	"github.com/hyperjump/kotae/internal/qa"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kotae server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "history":
		runHistory()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieval calls, filter decisions, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Engine,
		components.Tracker,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Time words in the question ("yesterday", "this week", "last month") narrow the
search window automatically; channel mentions and channel-ish phrases ("in
#standup", "the dev channel") narrow the channel. Explicit -days/-channel
flags override detection.

Examples:
  kotae ask -workspace W1 what happened this week
  kotae ask -workspace W1 "what is blocking the release?"
  kotae ask -workspace W1 -channel engineering -days 14 deploy status
  kotae ask -workspace W1 -conversation thread-42 who is on call
`)
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8720", "server URL (empty = run the pipeline in-process)")
	workspaceID := fs.String("workspace", "", "workspace id (required)")
	channel := fs.String("channel", "", "restrict to one channel name (overrides detection)")
	days := fs.Int("days", 0, "restrict to the last N days (overrides detection, 0 = auto)")
	maxSources := fs.Int("max-sources", 0, "context messages to use (default from config)")
	conversationID := fs.String("conversation", "", "conversation id for multi-turn follow-ups")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	if *workspaceID == "" {
		fmt.Fprintln(os.Stderr, "-workspace is required")
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	req := &models.AskRequest{
		Question:       question,
		WorkspaceID:    *workspaceID,
		ChannelFilter:  *channel,
		MaxSources:     *maxSources,
		ConversationID: *conversationID,
	}
	if *days > 0 {
		req.DaysBack = days
	}

	if *serverURL != "" {
		response, err := askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// In-process mode (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.Ask(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AnswerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/ask", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	addAuthHeader(httpReq)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.AnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8720", "server URL (empty = read local storage)")
	workspaceID := fs.String("workspace", "", "workspace id (required)")
	channelID := fs.String("channel", "", "channel id filter (only when listing)")
	limit := fs.Int("limit", 0, "max threads to list (only when listing)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *workspaceID == "" {
		fmt.Fprintln(os.Stderr, "-workspace is required")
		os.Exit(1)
	}

	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}

	// Without a conversation id, list the workspace's recently active
	// threads instead.
	if fs.NArg() < 1 {
		listRecentThreads(*configPath, *serverURL, *workspaceID, *channelID, *limit, format)
		return
	}
	conversationID := fs.Arg(0)

	var turns []models.Turn
	if *serverURL != "" {
		u := fmt.Sprintf("%s/api/v1/conversations/%s?workspace_id=%s",
			*serverURL, url.PathEscape(conversationID), url.QueryEscape(*workspaceID))
		httpReq, _ := http.NewRequest(http.MethodGet, u, nil)
		addAuthHeader(httpReq)
		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "History failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Turns []models.Turn `json:"turns"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		turns = out.Turns
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		tracker, err := conversation.NewTracker(cfg.Storage.DatabasePath, cfg.QA.HistoryLimit, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer tracker.Close()
		turns, err = tracker.History(context.Background(), *workspaceID, conversationID, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WriteHistory(os.Stdout, conversationID, turns, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func listRecentThreads(configPath, serverURL, workspaceID, channelID string, limit int, format cli.OutputFormat) {
	var threads []models.ThreadSummary
	if serverURL != "" {
		u := fmt.Sprintf("%s/api/v1/conversations?workspace_id=%s", serverURL, url.QueryEscape(workspaceID))
		if channelID != "" {
			u += "&channel_id=" + url.QueryEscape(channelID)
		}
		if limit > 0 {
			u += fmt.Sprintf("&limit=%d", limit)
		}
		httpReq, _ := http.NewRequest(http.MethodGet, u, nil)
		addAuthHeader(httpReq)
		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "History failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Threads []models.ThreadSummary `json:"threads"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		threads = out.Threads
	} else {
		cfg, _, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		tracker, err := conversation.NewTracker(cfg.Storage.DatabasePath, cfg.QA.HistoryLimit, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer tracker.Close()
		threads, err = tracker.Recent(context.Background(), workspaceID, channelID, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WriteThreads(os.Stdout, threads, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8720", "server URL (empty = clear in local storage)")
	workspaceID := fs.String("workspace", "", "workspace id (required)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae clear [flags] <conversation-id>")
		os.Exit(1)
	}
	conversationID := fs.Arg(0)
	if *workspaceID == "" {
		fmt.Fprintln(os.Stderr, "-workspace is required")
		os.Exit(1)
	}

	if *serverURL != "" {
		u := fmt.Sprintf("%s/api/v1/conversations/%s?workspace_id=%s",
			*serverURL, url.PathEscape(conversationID), url.QueryEscape(*workspaceID))
		httpReq, _ := http.NewRequest(http.MethodDelete, u, nil)
		addAuthHeader(httpReq)
		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Clear failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Cleared: %s\n", conversationID)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	tracker, err := conversation.NewTracker(cfg.Storage.DatabasePath, cfg.QA.HistoryLimit, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer tracker.Close()
	if err := tracker.Clear(context.Background(), *workspaceID, conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cleared: %s\n", conversationID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8720", "server URL")
	workspaceID := fs.String("workspace", "", "workspace id (optional, adds directory counts)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	u := *serverURL + "/api/v1/status"
	if *workspaceID != "" {
		u += "?workspace_id=" + url.QueryEscape(*workspaceID)
	}
	httpReq, _ := http.NewRequest(http.MethodGet, u, nil)
	addAuthHeader(httpReq)
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("status:             %v\n", status["status"])
		fmt.Printf("model:              %v\n", status["model"])
		if users, ok := status["users"]; ok {
			fmt.Printf("users:              %v   # directory entries in this workspace\n", users)
		}
		if channels, ok := status["channels"]; ok {
			fmt.Printf("channels:           %v\n", channels)
		}
		if disk, ok := status["disk_usage_bytes"]; ok {
			fmt.Printf("disk_usage_bytes:   %v\n", disk)
		}
		if cfgInfo, ok := status["config"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"retrieval_base_url", "collection_prefix", "context_messages", "database_path"} {
				if v, ok := cfgInfo[key]; ok {
					fmt.Printf("%-19s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// addAuthHeader attaches the bearer token when KOTAE_API_TOKEN is set, so the
// CLI works against a server with auth enabled.
func addAuthHeader(req *http.Request) {
	if token := os.Getenv("KOTAE_API_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Components holds initialized services.
type Components struct {
	Storage *storage.SQLiteStorage
	Tracker *conversation.Tracker
	Engine  *qa.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Tracker != nil {
		_ = c.Tracker.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	tracker, err := conversation.NewTracker(cfg.Storage.DatabasePath, cfg.QA.HistoryLimit, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize conversation tracker: %w", err)
	}

	searcher := retrieval.NewChromaSearcher(
		cfg.Retrieval.BaseURL,
		cfg.Retrieval.CollectionPrefix,
		time.Duration(cfg.Retrieval.TimeoutSec)*time.Second,
		logger,
	)

	var client llm.Client
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		gemini, err := llm.NewGeminiClient(context.Background(), apiKey, cfg.LLM.Model, cfg.LLM.MaxOutputTokens)
		if err != nil {
			_ = store.Close()
			_ = tracker.Close()
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
		client = gemini
		logger.Info("llm client initialized", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Warn("GEMINI_API_KEY not set, running in mock answer mode")
	}

	engine := qa.NewEngine(
		searcher,
		intent.NewDetector(store, logger),
		assemble.NewAssembler(store, logger),
		postprocess.NewProcessor(store, logger),
		tracker,
		client,
		cfg.QA.ContextMessages,
		logger,
	)

	return &Components{
		Storage: store,
		Tracker: tracker,
		Engine:  engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Workspace question answering over your message archive

Usage:
  kotae server [flags]                  Start the HTTP server
  kotae ask [flags] <question>          Ask a question against a workspace
  kotae history [flags] [conversation]  Show a conversation's turns (no id: list recent threads)
  kotae clear [flags] <conversation>    Clear a conversation's history
  kotae status [flags]                  Show server status
  kotae version                         Show version
  kotae help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string        Config file path (for in-process mode)
  --server string        Server URL (default: http://localhost:8720). Use empty (--server "") to run in-process.
  --workspace string     Workspace id (required)
  --channel string       Restrict to one channel name (overrides detection)
  --days int             Restrict to the last N days (overrides detection)
  --max-sources int      Context messages to use (default from config)
  --conversation string  Conversation id for multi-turn follow-ups
  --output string        Output format: text or json (default: text)

History/Clear Flags:
  --server string        Server URL. Use empty (--server "") for local storage.
  --workspace string     Workspace id (required)
  --channel string       Channel id filter when listing recent threads (history only)
  --limit int            Max threads when listing recent threads (history only)

Environment:
  GEMINI_API_KEY    LLM API key. Unset = deterministic mock answers.
  KOTAE_API_TOKEN   Bearer token for the HTTP API (server + CLI).

Examples:
  kotae server
  kotae ask --workspace W1 what happened this week
  kotae ask --workspace W1 --channel engineering "what is blocking the deploy?"
  kotae ask --workspace W1 --conversation thread-42 who is on call
  kotae history --workspace W1 thread-42
  kotae history --workspace W1
  kotae clear --workspace W1 thread-42
  kotae status --workspace W1`)
}
