package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/go-chi/chi/v5"
)

type PushTokenHandler struct {
	kv       ports.KVRepository
	catalog  ports.CatalogAPI
	deviceID string
}

func NewPushTokenHandler(kv ports.KVRepository, catalog ports.CatalogAPI, deviceID string) *PushTokenHandler {
	return &PushTokenHandler{kv: kv, catalog: catalog, deviceID: deviceID}
}

func (h *PushTokenHandler) Routes(r chi.Router) {
	r.Post("/push-token", h.register)
}

type registerPushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *PushTokenHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := app.RegisterPushToken(r.Context(), h.kv, h.catalog, h.deviceID, req.Token, req.Platform); err != nil {
		if app.KindOf(err) == app.KindInvalid {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
