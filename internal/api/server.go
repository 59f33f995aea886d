package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	serviceName = "action-server"

	// responseWriteGrace bounds writing a response once its job is finished.
	responseWriteGrace = 30 * time.Second
)

// Executor runs one job synchronously.
type Executor interface {
	Execute(ctx context.Context, job domain.Job, onProgress func(stage string)) (usecase.Response, error)
}

// Intake accepts jobs for asynchronous execution.
type Intake interface {
	Now(ctx context.Context, t domain.Task) (string, error)
	At(ctx context.Context, t domain.Task, runAt time.Time) (string, error)
}

// TaskReader looks up queued tasks.
type TaskReader interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
}

type enqueueReq struct {
	domain.Job
	MaxAttempts int    `json:"max_attempts"`
	RunAt       *int64 `json:"run_at_ms"` // optional delayed
}

type Server struct {
	router       *chi.Mux
	exec         Executor
	intake       Intake
	tasks        TaskReader
	writeTimeout time.Duration
}

// NewServer wires the routes. intake and tasks may be nil when no queue is
// configured; the async routes then answer 503.
func NewServer(cfg *config.Config, exec Executor, intake Intake, tasks TaskReader) *Server {
	s := &Server{
		router: chi.NewRouter(),
		exec:   exec,
		intake: intake,
		tasks:  tasks,
	}
	if cfg.Dispatch.Timeout > 0 {
		s.writeTimeout = cfg.Dispatch.Timeout + 30*time.Second
	}

	s.router.Post("/execute", s.handleExecute)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/enqueue", s.handleEnqueue)
	s.router.Get("/tasks/{id}", s.handleTask)
	return s
}

// Handler is the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/health" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var job domain.Job
	if err := decodeBody(r, &job); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a disconnecting client does not cancel a job that is already running
	ctx := context.WithoutCancel(r.Context())
	resp, err := s.exec.Execute(ctx, job, nil)

	// the server write deadline started ticking before the job queued for a
	// worker slot
	rc := http.NewResponseController(w)
	if derr := rc.SetWriteDeadline(time.Now().Add(responseWriteGrace)); derr != nil && !errors.Is(derr, http.ErrNotSupported) {
		log.Ctx(r.Context()).Warn().Err(derr).Msg("write deadline not extended")
	}

	switch {
	case errors.Is(err, domain.ErrMalformedJob):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Str("action", string(job.Action)).Msg("dispatch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	case resp.TimedOut:
		writeJSON(w, http.StatusGatewayTimeout, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		writeError(w, http.StatusServiceUnavailable, "queue not configured")
		return
	}
	var req enqueueReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t := domain.Task{Job: req.Job, MaxAttempts: req.MaxAttempts}

	var id string
	var err error
	if req.RunAt != nil {
		id, err = s.intake.At(r.Context(), t, time.UnixMilli(*req.RunAt))
	} else {
		id, err = s.intake.Now(r.Context(), t)
	}

	switch {
	case errors.Is(err, domain.ErrMalformedJob):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"id": id})
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "queue not configured")
		return
	}
	t, err := s.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	t.Job.Password = ""
	writeJSON(w, http.StatusOK, t)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("no JSON body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response not written")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": domain.ResultError, "message": msg})
}

// Run method of the Server struct runs the HTTP server on the specified port
// until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: s.writeTimeout,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		grace := 30 * time.Second
		if s.writeTimeout > grace {
			grace = s.writeTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
