package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type DeepLinkHTTPHandler struct {
	deeplink *app.DeepLinkHandler
}

func NewDeepLinkHTTPHandler(deeplink *app.DeepLinkHandler) *DeepLinkHTTPHandler {
	return &DeepLinkHTTPHandler{deeplink: deeplink}
}

func (h *DeepLinkHTTPHandler) Routes(r chi.Router) {
	r.Route("/deeplink", func(r chi.Router) {
		r.Get("/resolve", h.resolve)
		r.Post("/open", h.open)
	})
}

type deepLinkResponse struct {
	Link    app.DeepLink   `json:"link"`
	Episode domain.Episode `json:"episode"`
	Feed    domain.Feed    `json:"feed"`
}

func (h *DeepLinkHTTPHandler) resolve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing url")
		return
	}
	link, ep, feed, err := h.deeplink.Resolve(r.Context(), raw)
	if err != nil {
		if app.KindOf(err) == app.KindInvalid {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, deepLinkResponse{Link: link, Episode: ep, Feed: feed})
}

type openDeepLinkRequest struct {
	URL string `json:"url"`
}

func (h *DeepLinkHTTPHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openDeepLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.deeplink.Open(r.Context(), req.URL); err != nil {
		if app.KindOf(err) == app.KindInvalid {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
