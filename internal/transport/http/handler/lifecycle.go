package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bandhan-app/bandhan-api/internal/application/lifecycle"
	"github.com/bandhan-app/bandhan-api/internal/transport/http/middleware"
)

// LifecycleHandler exposes the authenticated account status transitions.
type LifecycleHandler struct {
	svc lifecycle.Service
}

func NewLifecycleHandler(svc lifecycle.Service) *LifecycleHandler {
	return &LifecycleHandler{svc: svc}
}

type deactivateBody struct {
	Reason *string `json:"reason"`
}

type deleteBody struct {
	Reason string `json:"reason"`
}

func (h *LifecycleHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	info, err := h.svc.Status(r.Context(), identity.AccountID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: info})
}

func (h *LifecycleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	// The body is optional; a missing reason falls back to the default.
	var req deactivateBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Deactivate(r.Context(), identity.AccountID, req.Reason); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "profile deactivated"})
}

func (h *LifecycleHandler) Activate(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.svc.Activate(r.Context(), identity.AccountID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "profile activated"})
}

func (h *LifecycleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req deleteBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Delete(r.Context(), identity.AccountID, req.Reason); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "account deleted"})
}
