package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/go-chi/chi/v5"
)

type QueueHandler struct {
	queue    *app.QueueManager
	catalog  ports.CatalogAPI
	deviceID string
}

func NewQueueHandler(queue *app.QueueManager, catalog ports.CatalogAPI, deviceID string) *QueueHandler {
	return &QueueHandler{queue: queue, catalog: catalog, deviceID: deviceID}
}

func (h *QueueHandler) Routes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/resolved", h.resolved)
		r.Post("/", h.add)
		r.Put("/", h.reorder)
		r.Delete("/", h.clear)
		r.Delete("/{episodeId}", h.remove)
		r.Post("/{episodeId}/played", h.played)
	})
}

type addQueueRequest struct {
	EpisodeID string `json:"episodeId"`
	FeedID    string `json:"feedId"`
}

func (h *QueueHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.Get(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, items)
}

// resolved joint la file aux épisodes des abonnements; les entrées orphelines
// sont écartées de la réponse.
func (h *QueueHandler) resolved(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpjson.WriteError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	items, err := h.queue.Get(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	episodes, err := h.catalog.SubscribedEpisodes(r.Context(), h.deviceID)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, app.ResolveQueue(items, episodes))
}

func (h *QueueHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.EpisodeID == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing episodeId")
		return
	}
	if err := h.queue.Add(r.Context(), req.EpisodeID, req.FeedID); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var items []domain.QueueItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.queue.Reorder(r.Context(), items); err != nil {
		if errors.Is(err, app.ErrConflict) {
			httpjson.WriteError(w, http.StatusConflict, "reorder is not a permutation of the current queue")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, items)
}

func (h *QueueHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Remove(r.Context(), chi.URLParam(r, "episodeId")); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Clear(r.Context()); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) played(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.MarkPlayed(r.Context(), chi.URLParam(r, "episodeId")); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
