// Package http exposes research runs over HTTP with chi.
//
// A run is started with POST /runs and streamed back as Server-Sent Events:
// one "message" event per appended message, then a single "done" or "error"
// event. Closing the connection cancels the run.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Engine defines what the HTTP server needs from a quill engine.
type Engine interface {
	Stream(ctx context.Context, initial domain.MessageLog) iter.Seq2[domain.MessageLog, error]
	Inspect() []graph.NodeInfo
}

// SeedFunc builds the initial log of a run from a topic.
type SeedFunc func(topic string) domain.MessageLog

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Engine Engine
	Seed   SeedFunc
	// Store is optional; when set, runs are recorded and GET /runs/{id} is served.
	Store  ports.TranscriptStore
	Logger *slog.Logger
}

// RunRequest is the body of POST /runs.
type RunRequest struct {
	Topic string `json:"topic"`
}

// DoneEvent is the payload of the final "done" event.
type DoneEvent struct {
	RunID string `json:"run_id"`
	Len   int    `json:"len"`
}

// ErrorEvent is the payload of the final "error" event.
type ErrorEvent struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Stage    string `json:"stage,omitempty"`
	LastRole string `json:"last_role,omitempty"`
	Error    string `json:"error"`
}

// NewHandler creates a new HTTP handler for the server.
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Seed == nil {
		s.Seed = func(topic string) domain.MessageLog {
			return domain.NewMessageLog(domain.NewUserMessage(topic))
		}
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Post("/runs", s.StartRun)
	r.Get("/runs", s.ListRuns)
	r.Get("/runs/{runID}", s.GetRun)
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "quill-http",
		"version": strings.TrimSpace(quill.Version),
	})
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Inspect())
}

// maxRunRequestBytes bounds a POST /runs body. A topic is at most
// domain.DefaultMaxInputSize bytes, so this leaves room for JSON escaping.
const maxRunRequestBytes = 64 << 10

// StartRun handles the POST /runs request (SSE).
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRunRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			s.Logger.Warn("StartRun: Request body too large", "limit", tooLarge.Limit)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("StartRun: Invalid request body", "error", err)
		return
	}
	topic, err := domain.SanitizeInput(body.Topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("StartRun: Streaming not supported")
		return
	}

	runID := uuid.NewString()
	ctx := domain.ContextWithRunID(r.Context(), runID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Run-ID", runID)
	w.WriteHeader(http.StatusOK)

	s.Logger.Info("run started", domain.KeyRunID, runID)
	initial := s.Seed(topic)
	final := initial
	s.record(ctx, runID, initial)
	for log, err := range s.Engine.Stream(ctx, initial) {
		s.record(ctx, runID, log)
		if err != nil {
			writeEvent(w, "error", errorEvent(runID, log, err))
			flusher.Flush()
			s.Logger.Warn("run failed", domain.KeyRunID, runID, "error", err)
			return
		}
		msg, _ := log.Last()
		writeEvent(w, "message", msg)
		flusher.Flush()
		final = log
	}
	writeEvent(w, "done", DoneEvent{RunID: runID, Len: final.Len()})
	flusher.Flush()
	s.Logger.Info("run finished", domain.KeyRunID, runID, "len", final.Len())
}

// ListRuns handles the GET /runs request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "transcripts are not recorded", http.StatusNotFound)
		return
	}
	ids, err := s.Store.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetRun handles the GET /runs/{runID} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "transcripts are not recorded", http.StatusNotFound)
		return
	}
	runID := chi.URLParam(r, "runID")
	log, err := s.Store.Load(r.Context(), runID)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		http.Error(w, fmt.Sprintf("run %s not found", runID), http.StatusNotFound)
	case err != nil:
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, log)
	}
}

func (s *Server) record(ctx context.Context, runID string, log domain.MessageLog) {
	if s.Store == nil {
		return
	}
	if err := s.Store.Save(context.WithoutCancel(ctx), runID, log); err != nil {
		s.Logger.Warn("failed to record transcript", domain.KeyRunID, runID, "error", err)
	}
}

func errorEvent(runID string, log domain.MessageLog, err error) ErrorEvent {
	ev := ErrorEvent{RunID: runID, Kind: domain.FailureFatal.String(), Error: err.Error()}
	var runErr *domain.RunError
	if errors.As(err, &runErr) {
		ev.Kind = runErr.Kind.String()
		ev.Stage = runErr.Stage
	}
	if last, ok := log.Last(); ok {
		ev.LastRole = string(last.Role)
	}
	return ev
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
