// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/belay/internal/adapters/auth"
	service "github.com/okian/belay/internal/app"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/types"
)

const (
	defaultMaxRankingLimit = 500
	maxBodyBytes           = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the host service.
type Dependencies interface {
	// Contest control.
	Setup(ctx context.Context, req service.SetupRequest) (string, error)
	StartContest(ctx context.Context) error
	StartAt(ctx context.Context, hhmmss string) error
	Reset(ctx context.Context, password string) error

	// Clock control.
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Adjust(ctx context.Context, seconds int) error
	SetManualTime(ctx context.Context, mmss string) error

	// Score entry.
	RecordScore(ctx context.Context, req service.ScoreRequest) (service.ScoreOutcome, error)

	// Read operations expose the published snapshot.
	Snapshot() *types.View
	Ranking(limit int) []types.Entry
	ExportCSV(w io.Writer) error
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// Server wires HTTP routes for the contest API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	contestHandler *ContestHandler
	clockHandler   *ClockHandler
	scoresHandler  *ScoresHandler
	rankingHandler *RankingHandler
	feed           http.Handler
	maxLimit       int
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithFeed serves the display push feed at /ws.
func WithFeed(h http.Handler) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.feed = h
		}
	}
}

// WithMaxRankingLimit caps GET /ranking?limit.
func WithMaxRankingLimit(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{maxLimit: defaultMaxRankingLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.contestHandler = NewContestHandler(deps)
	s.clockHandler = NewClockHandler(deps)
	s.scoresHandler = NewScoresHandler(deps)
	s.rankingHandler = NewRankingHandler(deps, s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/contest", MetricsMiddleware(s.contestHandler.HandleGetContest, "contest"))
	mux.HandleFunc("/contest/setup", MetricsMiddleware(s.contestHandler.HandleSetup, "contest_setup"))
	mux.HandleFunc("/contest/start", MetricsMiddleware(s.contestHandler.HandleStart, "contest_start"))
	mux.HandleFunc("/contest/reset", MetricsMiddleware(s.contestHandler.HandleReset, "contest_reset"))

	mux.HandleFunc("/clock/pause", MetricsMiddleware(s.clockHandler.HandlePause, "clock_pause"))
	mux.HandleFunc("/clock/resume", MetricsMiddleware(s.clockHandler.HandleResume, "clock_resume"))
	mux.HandleFunc("/clock/adjust", MetricsMiddleware(s.clockHandler.HandleAdjust, "clock_adjust"))
	mux.HandleFunc("/clock/manual", MetricsMiddleware(s.clockHandler.HandleManual, "clock_manual"))
	mux.HandleFunc("/clock/start-at", MetricsMiddleware(s.clockHandler.HandleStartAt, "clock_start_at"))

	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))

	mux.HandleFunc("/ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "ranking"))
	mux.HandleFunc("/ranking/export.csv", MetricsMiddleware(s.rankingHandler.HandleExport, "ranking_export"))

	if s.feed != nil {
		mux.Handle("/ws", s.feed)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service or domain error to its status code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrStopped), errors.Is(err, ErrUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// allow rejects requests whose method is not method.
func allow(w http.ResponseWriter, r *http.Request, method, op string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeFailure(w, op, ErrMethodNotAllowed)
	return false
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
