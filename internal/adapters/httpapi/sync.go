package httpapi

import (
	"net/http"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type SyncHandler struct {
	sync *app.SyncOrchestrator
}

func NewSyncHandler(sync *app.SyncOrchestrator) *SyncHandler {
	return &SyncHandler{sync: sync}
}

func (h *SyncHandler) Routes(r chi.Router) {
	r.Route("/sync", func(r chi.Router) {
		r.Post("/", h.trigger)
		r.Post("/background", h.background)
	})
}

// trigger réveille l'orchestrateur; l'espacement minimum s'applique quand même.
func (h *SyncHandler) trigger(w http.ResponseWriter, r *http.Request) {
	h.sync.Wake()
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (h *SyncHandler) background(w http.ResponseWriter, r *http.Request) {
	h.sync.RunBackground(r.Context())
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "done"})
}
