package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type DownloadsHandler struct {
	downloads *app.DownloadManager
}

func NewDownloadsHandler(downloads *app.DownloadManager) *DownloadsHandler {
	return &DownloadsHandler{downloads: downloads}
}

func (h *DownloadsHandler) Routes(r chi.Router) {
	r.Route("/downloads", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/progress", h.progress)
		r.Get("/{episodeId}", h.get)
		r.Delete("/{episodeId}", h.remove)
		r.Post("/{episodeId}/completed", h.completed)
	})
}

type createDownloadRequest struct {
	Episode domain.Episode `json:"episode"`
	Feed    domain.Feed    `json:"feed"`
}

func (h *DownloadsHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.downloads.List(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, recs)
}

func (h *DownloadsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Episode.ID == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing episode.id")
		return
	}
	rec, err := h.downloads.Download(r.Context(), req.Episode, req.Feed)
	if err != nil {
		if errors.Is(err, app.ErrConflict) {
			httpjson.WriteError(w, http.StatusConflict, "download already in flight")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusCreated, rec)
}

func (h *DownloadsHandler) progress(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.downloads.AllProgress())
}

func (h *DownloadsHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.downloads.Get(r.Context(), chi.URLParam(r, "episodeId"))
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, rec)
}

func (h *DownloadsHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.Remove(r.Context(), chi.URLParam(r, "episodeId")); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DownloadsHandler) completed(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.MarkCompleted(r.Context(), chi.URLParam(r, "episodeId")); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
