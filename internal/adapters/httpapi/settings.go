package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

// SettingsHandler expose les réglages de lecture/téléchargement. onPut est
// invoqué après chaque écriture réussie pour propager le nouveau plafond de
// téléchargements au limiteur.
type SettingsHandler struct {
	settings *app.SettingsService
	onPut    func(domain.Settings)
}

func NewSettingsHandler(settings *app.SettingsService, onPut func(domain.Settings)) *SettingsHandler {
	return &SettingsHandler{settings: settings, onPut: onPut}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.put)
	// Variante avec slash final (utile selon reverse-proxy / clients).
	r.Get("/settings/", h.get)
	r.Put("/settings/", h.put)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, current)
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var incoming domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if incoming.MaxEpisodesPerFeed < 0 || incoming.MaxConcurrentDownloads < 0 {
		httpjson.WriteError(w, http.StatusBadRequest, "quotas must not be negative")
		return
	}

	updated, err := h.settings.Put(r.Context(), incoming)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.onPut != nil {
		h.onPut(updated)
	}
	httpjson.Write(w, http.StatusOK, updated)
}
