package httpapi

import (
	"net/http"
	"strconv"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type ErrorsHandler struct {
	errlog *app.ErrorLog
}

func NewErrorsHandler(errlog *app.ErrorLog) *ErrorsHandler {
	return &ErrorsHandler{errlog: errlog}
}

func (h *ErrorsHandler) Routes(r chi.Router) {
	r.Get("/errors", h.list)
}

func (h *ErrorsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpjson.Write(w, http.StatusOK, h.errlog.Recent(limit))
}
