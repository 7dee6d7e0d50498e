// Package handler provides HTTP request handlers.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/middleware"
)

// Handler serves the fallback and diagnostic endpoints.
type Handler struct {
	logger *slog.Logger
}

// New creates a new Handler instance.
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, apierror.NotFound, nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, apierror.MethodNotAllowed, nil)
}

// Debug echoes the request as the pipeline resolved it.
// Only mounted in development.
// GET /api/debug
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"method":    r.Method,
		"path":      r.URL.Path,
		"query":     r.URL.Query(),
		"headers":   headers,
		"requestId": middleware.GetRequestID(r.Context()),
		"clientId":  auth.ClientIDFromContext(r.Context()),
		"userId":    auth.UserIDFromContext(r.Context()),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	apierror.WriteJSON(w, status, data)
}

// writeError maps err through the catalog. Server-side failures are logged
// with the full error; the response only carries the catalog entry.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	msg, extra := apierror.FromError(err)
	if msg.Kind == apierror.KindUnhandled || msg.Kind == apierror.KindPersistence {
		logger.Error("request_failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"code", msg.Code,
			"error", err,
		)
	}
	apierror.Write(w, msg, extra)
}

// decodeBody reads the request body as a JSON object.
func decodeBody(r *http.Request) (document.Document, error) {
	return document.Decode(r.Body)
}
