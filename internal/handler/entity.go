package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/service"
)

// EntityHandler handles HTTP requests for generic entities.
type EntityHandler struct {
	svc    *service.EntityService
	logger *slog.Logger
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(svc *service.EntityService, logger *slog.Logger) *EntityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityHandler{svc: svc, logger: logger}
}

// List handles GET /api/entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var fields []document.FieldError
	input := service.ListInput{Sort: query.Get("sort")}
	for _, p := range []struct {
		name string
		dst  *int64
	}{
		{"limit", &input.Limit},
		{"page", &input.Page},
	} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fields = append(fields, document.FieldError{Field: p.name, Message: "must be an integer"})
			continue
		}
		*p.dst = n
	}
	if err := document.NewValidationError(fields); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	page, err := h.svc.List(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /api/entities/{id}.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.ToDocument())
}

// Create handles POST /api/entities.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	e, err := h.svc.Create(r.Context(), doc)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("entity_created", "entity_id", e.ID(), "type", e.Type)
	writeJSON(w, http.StatusCreated, e.ToDocument())
}

// Patch handles PATCH /api/entities/{id}.
func (h *EntityHandler) Patch(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	e, err := h.svc.Patch(r.Context(), chi.URLParam(r, "id"), doc)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.ToDocument())
}

// Delete handles DELETE /api/entities/{id}.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("entity_deleted", "entity_id", id)
	apierror.Write(w, apierror.ResourceDeleted, map[string]any{"removed": 1})
}

// BulkDelete handles DELETE /api/entities with body {"id": [...]}.
func (h *EntityHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := document.NewValidationError(document.Required(doc, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	ids, err := doc.Strings("id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	removed, err := h.svc.BulkDelete(r.Context(), ids)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("entities_deleted", "requested", len(ids), "removed", removed)
	apierror.Write(w, apierror.ResourceDeleted, map[string]any{"removed": removed})
}

// PutAttachment handles PUT /api/entities/{id}/attachment.
func (h *EntityHandler) PutAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.svc.PutAttachment(r.Context(), id, r.Body, r.ContentLength, contentType); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	apierror.Write(w, apierror.OK, nil)
}

// GetAttachment handles GET /api/entities/{id}/attachment.
func (h *EntityHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	obj, err := h.svc.GetAttachment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("attachment_stream_failed", "entity_id", id, "error", err)
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *EntityHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAttachmentsDisabled):
		apierror.Write(w, apierror.NotImplemented, nil)
	default:
		writeError(w, r, h.logger, err)
	}
}
