package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/service"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
	hideID bool
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger, hideID bool) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{svc: svc, logger: logger, hideID: hideID}
}

// Get handles GET /api/user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		apierror.Write(w, apierror.AccessDenied, nil)
		return
	}
	writeJSON(w, http.StatusOK, user.Public(h.hideID))
}

// Patch handles PATCH /api/user.
func (h *UserHandler) Patch(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		apierror.Write(w, apierror.AccessDenied, nil)
		return
	}

	patch, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	user, err = h.svc.Update(r.Context(), user, patch)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID())
	writeJSON(w, http.StatusOK, user.Public(h.hideID))
}

// Delete handles DELETE /api/user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var email, password string
	rd := document.NewReader(doc, false)
	rd.String("emailAddress", &email)
	rd.String("password", &password)
	if err := rd.Err(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), user, email, password); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	apierror.Write(w, apierror.UserDeleted, nil)
}

// Signup handles POST /api/user/signup.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var in service.SignupInput
	rd := document.NewReader(doc, false)
	rd.String("username", &in.Username)
	rd.String("emailAddress", &in.EmailAddress)
	rd.String("password", &in.Password)
	rd.String("language", &in.Language)
	rd.String("timezone", &in.Timezone)
	if err := rd.Err(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	user, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_created", "user_id", user.ID())
	apierror.Write(w, apierror.UserCreated, nil)
}

// Login handles POST /api/user/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var in service.LoginInput
	rd := document.NewReader(doc, false)
	rd.String("username", &in.Username)
	rd.String("emailAddress", &in.EmailAddress)
	rd.String("password", &in.Password)
	if err := rd.Err(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	user, err := h.svc.Login(r.Context(), auth.ClientFromContext(r.Context()), in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", user.ID())
	apierror.Write(w, apierror.UserLoggedIn, nil)
}

// Logout handles POST /api/user/logout.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Logout(ctx, auth.ClientFromContext(ctx), auth.UserFromContext(ctx)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	apierror.Write(w, apierror.UserLoggedOut, nil)
}

// handleServiceError maps service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var patchErr *service.PatchError

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		apierror.Write(w, apierror.InvalidCredentials, nil)
	case errors.Is(err, service.ErrAccessDenied):
		apierror.Write(w, apierror.AccessDenied, nil)
	case errors.As(err, &patchErr):
		apierror.Write(w, apierror.PatchFailed, map[string]any{"errors": patchErr.Fields})
	default:
		writeError(w, r, h.logger, err)
	}
}
