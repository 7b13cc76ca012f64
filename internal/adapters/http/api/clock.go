package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/belay/internal/domain/types"
)

var errMissingField = errors.New("missing field")

// ClockDependencies defines the clock control operations.
type ClockDependencies interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Adjust(ctx context.Context, seconds int) error
	SetManualTime(ctx context.Context, mmss string) error
	StartAt(ctx context.Context, hhmmss string) error
	Snapshot() *types.View
}

type adjustRequest struct {
	Seconds *int `json:"seconds"`
}

// timeRequest carries MM:SS for /clock/manual and hh:mm:ss for /clock/start-at.
type timeRequest struct {
	Time string `json:"time"`
}

// ClockHandler handles clock control requests.
type ClockHandler struct {
	deps ClockDependencies
}

// NewClockHandler creates a new clock handler.
func NewClockHandler(deps ClockDependencies) *ClockHandler {
	return &ClockHandler{deps: deps}
}

// HandlePause handles POST /clock/pause requests.
func (h *ClockHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "api.clock_pause", h.deps.Pause)
}

// HandleResume handles POST /clock/resume requests.
func (h *ClockHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "api.clock_resume", h.deps.Resume)
}

// HandleAdjust handles POST /clock/adjust requests with {"seconds": N}.
func (h *ClockHandler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	const op = "api.clock_adjust"
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	var req adjustRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	if req.Seconds == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingField))
		return
	}
	h.reply(w, r, op, h.deps.Adjust(r.Context(), *req.Seconds))
}

// HandleManual handles POST /clock/manual requests with {"time": "MM:SS"}.
func (h *ClockHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	h.timed(w, r, "api.clock_manual", h.deps.SetManualTime)
}

// HandleStartAt handles POST /clock/start-at requests with {"time": "hh:mm:ss"}.
func (h *ClockHandler) HandleStartAt(w http.ResponseWriter, r *http.Request) {
	h.timed(w, r, "api.clock_start_at", h.deps.StartAt)
}

func (h *ClockHandler) run(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) error) {
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	h.reply(w, r, op, fn(r.Context()))
}

func (h *ClockHandler) timed(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) error) {
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	var req timeRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	if req.Time == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingField))
		return
	}
	h.reply(w, r, op, fn(r.Context(), req.Time))
}

func (h *ClockHandler) reply(w http.ResponseWriter, _ *http.Request, op string, err error) {
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot().Clock)
}
