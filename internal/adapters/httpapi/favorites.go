package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/go-chi/chi/v5"
)

// FavoritesHandler relaie les favoris vers le backend catalogue, en
// injectant l'identifiant d'appareil local.
type FavoritesHandler struct {
	catalog  ports.CatalogAPI
	deviceID string
}

func NewFavoritesHandler(catalog ports.CatalogAPI, deviceID string) *FavoritesHandler {
	return &FavoritesHandler{catalog: catalog, deviceID: deviceID}
}

func (h *FavoritesHandler) Routes(r chi.Router) {
	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.add)
		r.Delete("/{episodeId}", h.remove)
	})
}

type addFavoriteRequest struct {
	EpisodeID string `json:"episodeId"`
}

func (h *FavoritesHandler) list(w http.ResponseWriter, r *http.Request) {
	ids, err := h.catalog.Favorites(r.Context(), h.deviceID)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, ids)
}

func (h *FavoritesHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.EpisodeID == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing episodeId")
		return
	}
	if err := h.catalog.AddFavorite(r.Context(), h.deviceID, req.EpisodeID); err != nil {
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FavoritesHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.RemoveFavorite(r.Context(), h.deviceID, chi.URLParam(r, "episodeId")); err != nil {
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
