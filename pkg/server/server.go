// Package server exposes the tally store and session monitor to the browser
// client over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/normalize"
	"github.com/aretw0/tally/pkg/session"
	"github.com/aretw0/tally/pkg/timeline"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 10 << 20

// Config wires the server to its collaborators.
type Config struct {
	Service   *core.Service
	Monitor   *session.Monitor
	Logger    *slog.Logger
	StaticDir string // optional, serves the web client at /
}

// Server routes client requests to the service and the monitor.
type Server struct {
	svc       *core.Service
	monitor   *session.Monitor
	logger    *slog.Logger
	staticDir string
}

// New creates a Server. Service and Monitor are required.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		svc:       cfg.Service,
		monitor:   cfg.Monitor,
		logger:    logger,
		staticDir: cfg.StaticDir,
	}
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", s.handleData)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /api/system/settings", s.handleSettings)
	mux.HandleFunc("GET /api/system/state", s.handleState)
	mux.HandleFunc("POST /api/tab-closed", s.handleTabClosed)
	mux.HandleFunc("GET /api/projection", s.handleProjection)
	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}

	return s.loggingMiddleware(sameOrigin(limitBody(mux)))
}

type saveRequest struct {
	StoreName string `json:"storeName"`
	Data      any    `json:"data"`
	Key       string `json:"key"`
}

type settingsRequest struct {
	Timeout *float64 `json:"timeout"` // seconds
	Enabled *bool    `json:"enabled"`
}

type settingsResponse struct {
	Success bool    `json:"success"`
	Timeout float64 `json:"timeout"`
	Enabled bool    `json:"enabled"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Load(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := s.svc.SaveStore(r.Context(), req.StoreName, req.Data, req.Key); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeFailure(w, bodyError(err))
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		s.writeFailure(w, fmt.Errorf("%w: invalid JSON: %v", core.ErrValidation, err))
		return
	}
	if _, ok := raw.(map[string]any); !ok {
		s.writeFailure(w, fmt.Errorf("%w: import must be a JSON object, got %T", core.ErrValidation, raw))
		return
	}

	// Schema problems are reported, not enforced: normalization repairs them.
	if issues, err := normalize.CheckSchema(body); err != nil {
		s.logger.Warn("import schema check failed", "error", err)
	} else if len(issues) > 0 {
		s.logger.Warn("import does not match the document schema", "issues", issues)
	}

	if err := s.svc.Import(r.Context(), normalize.Document(raw)); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Data imported successfully"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.monitor.Heartbeat()
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, err)
		return
	}

	var timeout *time.Duration
	if req.Timeout != nil {
		seconds := *req.Timeout
		// Compare in seconds first: huge values overflow time.Duration.
		if seconds < session.MinTimeout.Seconds() || seconds > session.MaxTimeout.Seconds() {
			s.writeFailure(w, fmt.Errorf("%w: timeout must be between %v and %v seconds, got %v",
				core.ErrValidation, session.MinTimeout.Seconds(), session.MaxTimeout.Seconds(), seconds))
			return
		}
		d := time.Duration(seconds * float64(time.Second))
		timeout = &d
	}
	effective, enabled, err := s.monitor.Configure(timeout, req.Enabled)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Success: true,
		Timeout: effective.Seconds(),
		Enabled: enabled,
	})
}

func (s *Server) handleTabClosed(w http.ResponseWriter, r *http.Request) {
	s.monitor.TabClosed()
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := map[string]any{
		s.svc.ComponentType():     s.svc.State(),
		s.monitor.ComponentType(): s.monitor.State(),
	}
	if comp, ok := s.svc.Repository().(interface {
		introspection.Introspectable
		introspection.Component
	}); ok {
		state[comp.ComponentType()] = comp.State()
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Load(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	p, err := timeline.FromDocument(doc, r.URL.Query().Get("key"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projection": p,
		"goals":      timeline.Goals(doc.Goals),
	})
}

// decodeBody reads a single JSON value from the request body.
func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return fmt.Errorf("%w: invalid JSON: %v", core.ErrValidation, err)
}

var errBodyTooLarge = errors.New("request body too large")

// writeFailure maps domain errors to status codes. Details name files and
// causes, never stack traces.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(message, "error", err)
	} else {
		s.logger.Debug(message, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: message, Detail: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, core.ErrUnknownStore):
		return http.StatusBadRequest, "unknown store"
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, timeline.ErrNoTimeline):
		return http.StatusNotFound, "timeline not found"
	case errors.Is(err, core.ErrClosed):
		return http.StatusServiceUnavailable, "shutting down"
	case errors.Is(err, core.ErrUnrecoverableStore):
		return http.StatusInternalServerError, "data store unrecoverable"
	case errors.Is(err, core.ErrWrite):
		return http.StatusInternalServerError, "failed to save data"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
