// Package server exposes the plan-then-execute loop over HTTP: one run per
// POST /chat, thread history kept in memory, and loop events streamed to
// websocket clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EventsTopic is the watermill topic the server publishes loop events on.
const EventsTopic = "planexec.events"

// Runner is satisfied by *planexec.Loop.
type Runner interface {
	Run(ctx context.Context, request string) (*planexec.Result, error)
}

type Server struct {
	runner Runner
	store  *ThreadStore
	hub    *Hub
	router *events.EventRouter
}

type Option func(*Server)

func WithThreadStore(s *ThreadStore) Option {
	return func(srv *Server) { srv.store = s }
}

// WithEventRouter publishes the events of every run on router and forwards
// them to websocket clients.
func WithEventRouter(r *events.EventRouter) Option {
	return func(srv *Server) { srv.router = r }
}

func New(runner Runner, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("server needs a runner")
	}
	s := &Server{
		runner: runner,
		hub:    NewHub(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		s.store = NewThreadStore()
	}
	if s.router != nil {
		s.router.AddHandler("websocket-hub", EventsTopic, s.hub.HandleMessage)
	}
	return s, nil
}

func (s *Server) Threads() *ThreadStore { return s.store }

func (s *Server) Hub() *Hub { return s.hub }

type ChatRequest struct {
	UserMessage string `json:"user_message"`
	ThreadID    string `json:"thread_id,omitempty"`
}

type ChatResponse struct {
	ThreadID string     `json:"thread_id"`
	RunID    string     `json:"run_id"`
	Answer   string     `json:"answer"`
	TaskList tasks.List `json:"task_list"`
}

type errorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"thread_id,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Phase    string `json:"phase,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"threads": len(s.store.List()),
			"clients": s.hub.Clients(),
		})
	})
	mux.HandleFunc("POST /chat", s.chat)
	mux.HandleFunc("GET /threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.store.List())
	})
	mux.HandleFunc("GET /history/{thread_id}", s.history)
	mux.HandleFunc("GET /events", s.hub.ServeWS)
	return mux
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_message is required"})
		return
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	ctx := events.WithEventMetadata(r.Context(), events.EventMetadata{ThreadID: threadID})
	if s.router != nil {
		ctx = events.WithEventSinks(ctx, s.router.Sink(EventsTopic))
	}

	logger := log.With().Str("thread_id", threadID).Logger()
	logger.Info().Msg("chat run started")

	res, err := s.runner.Run(ctx, req.UserMessage)
	if err != nil {
		rec := RunRecord{Request: req.UserMessage, Error: err.Error()}
		resp := errorResponse{Error: err.Error(), ThreadID: threadID}
		var runErr *planexec.RunError
		if errors.As(err, &runErr) {
			rec.RunID = runErr.RunID
			resp.RunID = runErr.RunID
			resp.Phase = string(runErr.Phase)
			if runErr.State != nil {
				rec.Messages = runErr.State.Messages
				rec.TaskList = runErr.State.TaskList
			}
		}
		s.store.Append(threadID, rec)
		logger.Error().Err(err).Msg("chat run failed")
		writeJSON(w, statusFor(err), resp)
		return
	}

	rec := RunRecord{RunID: res.RunID, Request: req.UserMessage, Answer: res.Answer}
	if res.State != nil {
		rec.Messages = res.State.Messages
		rec.TaskList = res.State.TaskList
	}
	s.store.Append(threadID, rec)
	logger.Info().Str("run_id", res.RunID).Int("iterations", res.Iterations).Msg("chat run finished")

	writeJSON(w, http.StatusOK, ChatResponse{
		ThreadID: threadID,
		RunID:    res.RunID,
		Answer:   res.Answer,
		TaskList: rec.TaskList,
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	msgs, ok := s.store.History(threadID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown thread", ThreadID: threadID})
		return
	}
	runs, _ := s.store.Runs(threadID)
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"messages":  msgs,
		"runs":      runs,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, planexec.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, planexec.ErrBudgetExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("could not write response")
	}
}

// ListenAndServe runs the event router and the HTTP server until ctx is
// cancelled or one of them fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	if s.router != nil {
		eg.Go(func() error {
			return s.router.Run(ctx)
		})
	}
	eg.Go(func() error {
		if s.router != nil {
			select {
			case <-s.router.Running():
			case <-ctx.Done():
				return nil
			}
		}
		log.Info().Str("address", addr).Msg("planexec server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down planexec server")
		err := srv.Shutdown(shutdownCtx)
		if s.router != nil {
			_ = s.router.Close()
		}
		return err
	})
	return eg.Wait()
}
