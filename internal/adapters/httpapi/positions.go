package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type PositionsHandler struct {
	positions *app.PositionTracker
}

func NewPositionsHandler(positions *app.PositionTracker) *PositionsHandler {
	return &PositionsHandler{positions: positions}
}

func (h *PositionsHandler) Routes(r chi.Router) {
	r.Route("/positions", func(r chi.Router) {
		r.Get("/", h.list)
		r.Put("/", h.save)
		r.Get("/{episodeId}", h.get)
	})
}

type savePositionRequest struct {
	EpisodeID  string `json:"episodeId"`
	FeedID     string `json:"feedId"`
	PositionMs int64  `json:"positionMs"`
	DurationMs int64  `json:"durationMs"`
}

func (h *PositionsHandler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.positions.All(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, all)
}

func (h *PositionsHandler) save(w http.ResponseWriter, r *http.Request) {
	var req savePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.positions.Save(r.Context(), req.EpisodeID, req.FeedID, req.PositionMs, req.DurationMs); err != nil {
		if app.KindOf(err) == app.KindInvalid {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PositionsHandler) get(w http.ResponseWriter, r *http.Request) {
	pos, ok, err := h.positions.Load(r.Context(), chi.URLParam(r, "episodeId"))
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httpjson.Write(w, http.StatusOK, pos)
}
