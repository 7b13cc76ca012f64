package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/belay/internal/app"
)

// ScoreDependencies defines the score entry operation.
type ScoreDependencies interface {
	RecordScore(ctx context.Context, req service.ScoreRequest) (service.ScoreOutcome, error)
}

// scoreRequest mirrors the body of POST /scores. Top and zone hold attempt
// counts as typed by the judge.
type scoreRequest struct {
	SubmissionID string `json:"submission_id"`
	Competitor   string `json:"competitor"`
	Route        string `json:"route"`
	Top          string `json:"top"`
	Zone         string `json:"zone"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.Competitor) == "":
		return errors.New("missing competitor")
	case strings.TrimSpace(s.Route) == "":
		return errors.New("missing route")
	}
	return nil
}

type scoreResponse struct {
	Status     string  `json:"status"`
	Duplicate  bool    `json:"duplicate"`
	Competitor string  `json:"competitor,omitempty"`
	Route      string  `json:"route,omitempty"`
	Score      float64 `json:"score"`
	Basis      string  `json:"basis,omitempty"`
}

// ScoresHandler handles score entry requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if !allow(w, r, http.MethodPost, op) {
		return
	}
	var req scoreRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.RecordScore(r.Context(), service.ScoreRequest{
		SubmissionID: req.SubmissionID,
		Competitor:   strings.TrimSpace(req.Competitor),
		Route:        strings.TrimSpace(req.Route),
		Top:          req.Top,
		Zone:         req.Zone,
	})
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if out.Duplicate {
		writeJSON(w, http.StatusOK, scoreResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		Status:     "recorded",
		Competitor: out.Competitor,
		Route:      out.Route,
		Score:      out.Score,
		Basis:      string(out.Basis),
	})
}
