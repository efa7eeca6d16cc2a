package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"elamid/internal/config"
	elamiderrors "elamid/internal/errors"
	"elamid/internal/launcher"
	"elamid/internal/parser"
	"elamid/pkg/request"
)

// SuccessMessage confirms the launch; the assessment itself runs on.
const SuccessMessage = "Assessment started successfully"

// Launcher starts an assessment container for a validated request.
type Launcher interface {
	Launch(ctx context.Context, req *request.RunRequest) (*launcher.Result, error)
}

// Server exposes the launcher over HTTP.
type Server struct {
	router   *mux.Router
	launcher Launcher
	http     *http.Server
}

func New(l Launcher, cfg config.ServerConfig) *Server {
	s := &Server{router: mux.NewRouter(), launcher: l}
	s.router.Use(logRequests)
	s.router.HandleFunc("/run", s.handleRun).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	slog.Info("Listening for run requests", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight launches.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleRun(w http.ResponseWriter, req *http.Request) {
	runReq, err := parser.ParseRunRequest(req.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	// A caller hanging up must not abort a launch halfway through the
	// stop/remove/start sequence.
	ctx := context.WithoutCancel(req.Context())

	// A launch queued behind others on the slot can outlast WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("Failed to clear write deadline", "error", err)
	}

	result, err := s.launcher.Launch(ctx, runReq)
	if err != nil {
		s.writeError(w, err)
		return
	}

	slog.Info("Run request accepted", "runId", result.RunID, "containerID", result.ContainerID)
	writeText(w, http.StatusOK, SuccessMessage)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := elamiderrors.Classify(err)
	status := elamiderrors.HTTPStatus(err)
	slog.Error("Run request failed", "kind", kind.String(), "status", status, "error", err)
	writeText(w, status, elamiderrors.Message(err))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests logs one line per request. Query strings are left out since
// they carry the API token.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("HTTP request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"remote", req.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
