package handler

import (
	"net/http"

	"github.com/bandhan-app/bandhan-api/internal/application/block"
	"github.com/bandhan-app/bandhan-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// BlockHandler exposes the directional block list.
type BlockHandler struct {
	svc block.Service
}

func NewBlockHandler(svc block.Service) *BlockHandler { return &BlockHandler{svc: svc} }

func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	blocked, err := h.svc.Block(r.Context(), identity.AccountID, chi.URLParam(r, "customId"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "profile blocked", Data: blocked})
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	unblocked, err := h.svc.Unblock(r.Context(), identity.AccountID, chi.URLParam(r, "customId"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "profile unblocked", Data: unblocked})
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	blocked, err := h.svc.List(r.Context(), identity.AccountID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: blocked})
}
