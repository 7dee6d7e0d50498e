package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/service"
)

// ClientHandler handles HTTP requests for client identities.
type ClientHandler struct {
	svc    *service.ClientService
	logger *slog.Logger
	hideID bool
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(svc *service.ClientService, logger *slog.Logger, hideID bool) *ClientHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientHandler{svc: svc, logger: logger, hideID: hideID}
}

// Get handles GET /api/client. Without a client key a new client is issued.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	if client := auth.ClientFromContext(r.Context()); client != nil {
		writeJSON(w, http.StatusOK, client.Public(h.hideID))
		return
	}

	client, err := h.svc.Issue(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("client_issued", "client_id", client.ID())
	writeJSON(w, http.StatusCreated, client.Public(h.hideID))
}

// Delete handles DELETE /api/client.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	client := auth.ClientFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), client); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("client_deleted", "client_id", client.ID())
	apierror.Write(w, apierror.ClientDeleted, nil)
}

// handleServiceError maps service errors to HTTP responses.
func (h *ClientHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		apierror.Write(w, apierror.AccessDenied, nil)
	default:
		writeError(w, r, h.logger, err)
	}
}
