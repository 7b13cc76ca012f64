package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/belay/internal/app"
	"github.com/okian/belay/internal/domain/types"
)

// ContestDependencies defines the contest lifecycle operations.
type ContestDependencies interface {
	Setup(ctx context.Context, req service.SetupRequest) (string, error)
	StartContest(ctx context.Context) error
	Reset(ctx context.Context, password string) error
	Snapshot() *types.View
}

type setupResponse struct {
	Session string      `json:"session"`
	State   *types.View `json:"state"`
}

var errNegativeSetup = errors.New("routes and pause_minutes must not be negative")

type resetRequest struct {
	Password string `json:"password"`
}

// ContestHandler handles contest lifecycle requests.
type ContestHandler struct {
	deps ContestDependencies
}

// NewContestHandler creates a new contest handler.
func NewContestHandler(deps ContestDependencies) *ContestHandler {
	return &ContestHandler{deps: deps}
}

// HandleGetContest handles GET /contest requests.
func (h *ContestHandler) HandleGetContest(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "api.get_contest") {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot())
}

// HandleSetup handles POST /contest/setup requests.
func (h *ContestHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	const op = "api.setup"
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	var req service.SetupRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	if req.Routes < 0 || req.PauseMinutes < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errNegativeSetup))
		return
	}
	id, err := h.deps.Setup(r.Context(), req)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{Session: id, State: h.deps.Snapshot()})
}

// HandleStart handles POST /contest/start requests.
func (h *ContestHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start"
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	if err := h.deps.StartContest(r.Context()); err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot())
}

// HandleReset handles POST /contest/reset requests.
func (h *ContestHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	if err := h.deps.Reset(r.Context(), req.Password); err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot())
}
