package handlers

import (
	"bytes"
	"io"

	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
	"github.com/shrimpsizemoose/omtenta/internal/models"
)

// AdminHandler serves the authority's knobs: quorum, role grants and API
// token issuance. The engine enforces who may turn them.
type AdminHandler struct {
	service *app.Service
}

func NewAdminHandler(service *app.Service) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

func (h *AdminHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error.Printf("Failed to read request body: %v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	logger.Debug.Printf("Received request body: %s", string(body))

	r.Body = io.NopCloser(bytes.NewBuffer(body))
	return body, true
}

func (h *AdminHandler) HandleSetQuorum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	actor, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	if _, ok := h.readBody(w, r); !ok {
		return
	}

	var update models.QuorumUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := update.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Engine.SetMinApprovals(actor, update.MinApprovals); err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *AdminHandler) HandleAddTeacher(w http.ResponseWriter, r *http.Request) {
	h.handleGrant(w, r, h.service.Engine.AddTeacher)
}

func (h *AdminHandler) HandleAddApprover(w http.ResponseWriter, r *http.Request) {
	h.handleGrant(w, r, h.service.Engine.AddApprover)
}

func (h *AdminHandler) handleGrant(w http.ResponseWriter, r *http.Request, grant func(actor, identity string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	actor, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	if _, ok := h.readBody(w, r); !ok {
		return
	}

	var payload models.RoleGrant
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := payload.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := grant(actor, payload.Identity); err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleIssueToken mints (or returns) the API token for an identity.
// Authority only, and only when auth is switched on.
func (h *AdminHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	actor, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	if !h.service.Engine.IsAuthority(actor) {
		http.Error(w, "Only the authority can issue tokens", http.StatusForbidden)
		return
	}

	if h.service.Tokens == nil {
		http.Error(w, "Token issuance requires auth to be enabled", http.StatusServiceUnavailable)
		return
	}

	if _, ok := h.readBody(w, r); !ok {
		return
	}

	var payload models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := payload.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, isNew, err := h.service.Tokens.FetchOrCreateToken(r.Context(), payload.Identity)
	if err != nil {
		logger.Error.Printf("Failed to issue token for %s: %v", payload.Identity, err)
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"token": info,
		"new":   isNew,
	}); err != nil {
		logger.Error.Printf("Failed to encode token response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
