// Package api implements the HTTP surface: chat (JSON and SSE
// streaming), scheduled-task management, the WebSocket event feed, and
// health probes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/wardlow/reeve-agent/internal/events"
	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/orchestrate"
	"github.com/wardlow/reeve-agent/internal/scheduler"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// writeJSON encodes v to w. Failures here usually mean the client went
// away, so they are logged at debug level only.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	listen      string
	coordinator *orchestrate.Coordinator
	memory      *memory.Store
	sched       *scheduler.Scheduler
	bus         *events.Bus
	logger      *slog.Logger
	server      *http.Server
	markdown    goldmark.Markdown
}

// NewServer creates the API server. sched and bus may be nil, which
// disables the task and event-feed endpoints respectively.
func NewServer(listen string, coordinator *orchestrate.Coordinator, mem *memory.Store, sched *scheduler.Scheduler, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen:      listen,
		coordinator: coordinator,
		memory:      mem,
		sched:       sched,
		bus:         bus,
		logger:      logger,
		markdown:    goldmark.New(),
	}
}

// Handler builds the route table. Exposed separately from Start so tests
// can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.handleChat)

	mux.HandleFunc("POST /v1/tasks", s.handleTaskCreate)
	mux.HandleFunc("GET /v1/tasks", s.handleTaskList)
	mux.HandleFunc("POST /v1/tasks/{id}/enable", s.handleTaskEnable(true))
	mux.HandleFunc("POST /v1/tasks/{id}/disable", s.handleTaskEnable(false))
	mux.HandleFunc("POST /v1/tasks/{id}/run", s.handleTaskRun)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleTaskDelete)

	mux.HandleFunc("GET /v1/events", s.handleEvents)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.listen,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE and WebSocket responses are long-lived and
		// bounded by the client instead.
	}
	s.logger.Info("starting API server", "listen", s.listen)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]any{"success": false, "error": msg}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"name": "Reeve", "status": "ok"}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	// Stream switches the response to SSE.
	Stream bool `json:"stream,omitempty"`
	// HTML additionally renders the reply markdown to HTML.
	HTML bool `json:"html,omitempty"`
}

// ChatResponse is the non-streaming POST /v1/chat reply.
type ChatResponse struct {
	Reply          string      `json:"reply"`
	HTML           string      `json:"html,omitempty"`
	ConversationID string      `json:"conversation_id"`
	RunID          string      `json:"run_id"`
	Tool           string      `json:"tool"`
	Success        bool        `json:"success"`
	Confidence     float64     `json:"confidence"`
	Trace          trace.Graph `json:"trace,omitempty"`
	Data           any         `json:"data,omitempty"`
	Error          string      `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.New().String()
	}

	// History is captured before the new message is recorded, so the
	// run's window does not include the request itself.
	var history []memory.Message
	if s.memory != nil {
		history = s.memory.Recent(convID, memory.RecentWindow)
		if history == nil {
			// Non-nil so the coordinator does not re-fetch a window that
			// would include the message recorded below.
			history = []memory.Message{}
		}
		if err := s.memory.AddMessage(convID, "user", req.Message); err != nil {
			s.logger.Error("failed to record user message", "error", err)
		}
	}

	if req.Stream {
		s.streamChat(w, r, req, convID, history)
		return
	}

	// The run is not cancelled when the client disconnects; it completes,
	// the reply is recorded, and only the response write is lost.
	result := s.coordinator.Run(context.WithoutCancel(r.Context()), req.Message, convID, history)
	s.recordReply(convID, result)

	resp := ChatResponse{
		Reply:          result.Reply,
		ConversationID: convID,
		RunID:          result.RunID,
		Tool:           result.Tool,
		Success:        result.Success,
		Confidence:     result.Confidence,
		Trace:          result.Trace,
		Data:           result.Data,
	}
	if req.HTML {
		resp.HTML = s.renderHTML(result.Reply)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// streamChat serves a chat run as SSE: a start message, step lifecycle
// messages, reply chunks, and a final done message carrying the full
// result.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req ChatRequest, convID string, history []memory.Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Debug("failed to marshal SSE payload", "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	send("start", map[string]string{"conversation_id": convID})

	sinks := orchestrate.Sinks{
		OnStep:  func(e orchestrate.StepEvent) { send("step", e) },
		OnChunk: func(chunk string) { send("chunk", map[string]string{"text": chunk}) },
	}

	// The run is not cancelled when the client disconnects; it completes
	// and its output is discarded with the connection.
	result := s.coordinator.RunStream(context.WithoutCancel(r.Context()), req.Message, convID, history, sinks)
	s.recordReply(convID, result)

	done := ChatResponse{
		Reply:          result.Reply,
		ConversationID: convID,
		RunID:          result.RunID,
		Tool:           result.Tool,
		Success:        result.Success,
		Confidence:     result.Confidence,
		Trace:          result.Trace,
		Data:           result.Data,
	}
	if req.HTML {
		done.HTML = s.renderHTML(result.Reply)
	}
	if result.Success {
		send("done", done)
	} else {
		// On failure the reply text is the failure description; the error
		// field carries it explicitly for clients that key on it.
		done.Error = result.Reply
		send("error", done)
	}
}

func (s *Server) recordReply(convID string, result orchestrate.Result) {
	if s.memory == nil || result.Reply == "" {
		return
	}
	if err := s.memory.AddMessage(convID, "assistant", result.Reply); err != nil {
		s.logger.Error("failed to record assistant reply", "error", err)
	}
}

// renderHTML converts reply markdown to HTML. On render failure the
// reply is still delivered, just without the HTML form.
func (s *Server) renderHTML(reply string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(reply), &buf); err != nil {
		s.logger.Debug("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}

// TaskRequest is the POST /v1/tasks body.
type TaskRequest struct {
	Name         string       `json:"name"`
	ScheduleText string       `json:"schedule_text"`
	Tool         string       `json:"tool"`
	Input        any          `json:"input,omitempty"`
	Context      tool.Context `json:"context,omitempty"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not enabled")
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.sched.Add(req.Name, req.ScheduleText, req.Tool, req.Input, req.Context)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"success": true, "task": task}, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not enabled")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"success": true, "tasks": s.sched.List()}, s.logger)
}

func (s *Server) handleTaskEnable(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sched == nil {
			s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not enabled")
			return
		}
		if err := s.sched.SetEnabled(r.PathValue("id"), enabled); err != nil {
			s.taskError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]any{"success": true}, s.logger)
	}
}

func (s *Server) handleTaskRun(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not enabled")
		return
	}
	if err := s.sched.RunNow(r.PathValue("id")); err != nil {
		s.taskError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"success": true}, s.logger)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not enabled")
		return
	}
	if err := s.sched.Remove(r.PathValue("id")); err != nil {
		s.taskError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"success": true}, s.logger)
}

func (s *Server) taskError(w http.ResponseWriter, err error) {
	if errors.Is(err, scheduler.ErrTaskNotFound) {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, err.Error())
}
