package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/belay/internal/domain/types"
)

// RankingDependencies defines the ranking read operations.
type RankingDependencies interface {
	Ranking(limit int) []types.Entry
	ExportCSV(w io.Writer) error
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps     RankingDependencies
	maxLimit int
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies, maxLimit int) *RankingHandler {
	if maxLimit < 1 {
		maxLimit = defaultMaxRankingLimit
	}
	return &RankingHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetRanking handles GET /ranking?limit=N requests. Without a limit
// the whole ranking up to the configured cap is returned.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if !allow(w, r, http.MethodGet, op) {
		return
	}
	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	entries := h.deps.Ranking(n)
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExport handles GET /ranking/export.csv requests.
func (h *RankingHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_ranking"
	if !allow(w, r, http.MethodGet, op) {
		return
	}
	var buf bytes.Buffer
	if err := h.deps.ExportCSV(&buf); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ranking.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
