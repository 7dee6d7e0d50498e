// Package apierror holds the response message catalog and the JSON envelope
// every error and status message is written in.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/repository"
)

// Kind classifies a message for logging and metrics.
type Kind string

const (
	KindNone           Kind = ""
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindRateLimit      Kind = "rate_limit"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindPersistence    Kind = "persistence"
	KindUnhandled      Kind = "unhandled"
)

// Message is one entry of the response catalog.
type Message struct {
	Code        string
	Status      int
	Title       string
	Description string
	Kind        Kind
}

// Catalog.
var (
	OK              = Message{"OK", http.StatusOK, "OK", "", KindNone}
	UserCreated     = Message{"USER_CREATED", http.StatusCreated, "Signup successful", "Your account has been created.", KindNone}
	UserLoggedIn    = Message{"USER_LOGGED_IN", http.StatusOK, "Login successful", "You are now logged in.", KindNone}
	UserLoggedOut   = Message{"USER_LOGGED_OUT", http.StatusOK, "Logout successful", "You are now logged out.", KindNone}
	UserDeleted     = Message{"USER_DELETED", http.StatusOK, "User deleted", "Your account has been removed.", KindNone}
	ClientDeleted   = Message{"CLIENT_DELETED", http.StatusOK, "Client deleted", "Your client key is no longer valid.", KindNone}
	ResourceDeleted = Message{"RESOURCE_DELETED", http.StatusOK, "Resource deleted", "", KindNone}

	ClientError           = Message{"CLIENT_ERROR", http.StatusBadRequest, "Invalid request", "The request could not be processed.", KindValidation}
	InvalidJSON           = Message{"INVALID_JSON", http.StatusBadRequest, "Invalid json", "The request body is not valid json.", KindValidation}
	InvalidJSONTypes      = Message{"INVALID_JSON_TYPES", http.StatusBadRequest, "Invalid json types", "One or more fields have the wrong type.", KindValidation}
	InvalidJSONDateFormat = Message{"INVALID_JSON_DATEFORMAT", http.StatusBadRequest, "Invalid json date format", "Dates must be ISO 8601 strings.", KindValidation}
	PatchFailed           = Message{"PATCH_FAILED", http.StatusBadRequest, "Patch failed", "One or more fields could not be updated.", KindValidation}

	InvalidAPIKey      = Message{"INVALID_API_KEY", http.StatusForbidden, "Invalid api key", "Your http x-api-key header is missing or invalid.", KindAuthentication}
	InvalidClientKey   = Message{"INVALID_CLIENT_KEY", http.StatusForbidden, "Invalid client key", "Your http x-api-client-key header is missing or invalid.", KindAuthentication}
	InvalidCredentials = Message{"INVALID_CREDENTIALS", http.StatusForbidden, "Invalid credentials", "The username, email address or password is wrong.", KindAuthentication}
	AccessDenied       = Message{"ACCESS_DENIED", http.StatusForbidden, "Access denied", "You are not allowed to access this resource.", KindAuthorization}

	NotFound          = Message{"NOT_FOUND", http.StatusNotFound, "Not found", "The requested resource does not exist.", KindNotFound}
	MethodNotAllowed  = Message{"METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "Method not allowed", "The http method is not supported on this resource.", KindValidation}
	Conflict          = Message{"CONFLICT", http.StatusConflict, "Conflict", "A resource with the same unique value already exists.", KindValidation}
	PayloadTooLarge   = Message{"PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "Payload too large", "The request body exceeds the allowed size.", KindValidation}
	RateLimitExceeded = Message{"RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, "Rate limit exceeded", "Please try again in a few seconds.", KindRateLimit}

	ServerError      = Message{"SERVER_ERROR", http.StatusInternalServerError, "Internal server error", "Something went terribly wrong, try again later.", KindUnhandled}
	PersistenceError = Message{"PERSISTENCE_ERROR", http.StatusInternalServerError, "Storage error", "The data store could not complete the request.", KindPersistence}
	NotImplemented   = Message{"NOT_IMPLEMENTED", http.StatusNotImplemented, "Not implemented", "This feature is not enabled on the server.", KindUnhandled}
)

// IsError reports whether m describes a failure.
func (m Message) IsError() bool { return m.Status >= http.StatusBadRequest }

// Envelope builds the response body for m. Extra keys never replace the
// status, message or description keys.
func (m Message) Envelope(extra map[string]any) map[string]any {
	body := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		body[k] = v
	}
	body["status"] = m.Status
	body["message"] = m.Title
	body["description"] = m.Description
	return body
}

// Write writes m as a JSON envelope.
func Write(w http.ResponseWriter, m Message, extra map[string]any) {
	WriteJSON(w, m.Status, m.Envelope(extra))
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// FromError maps err onto the catalog. The returned extra keys are safe to
// send to callers; raw error text is never included for internal failures.
func FromError(err error) (Message, map[string]any) {
	var (
		typeErr    *document.TypeError
		dateErr    *document.DateError
		valErr     *document.ValidationError
		persistErr *repository.PersistenceError
		jsonType   *json.UnmarshalTypeError
		jsonSyntax *json.SyntaxError
		timeErr    *time.ParseError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return PayloadTooLarge, nil
	case errors.As(err, &persistErr):
		return PersistenceError, nil
	case errors.As(err, &typeErr):
		return InvalidJSONTypes, map[string]any{"field": typeErr.Field}
	case errors.As(err, &jsonType):
		return InvalidJSONTypes, map[string]any{"field": jsonType.Field}
	case errors.As(err, &dateErr):
		return InvalidJSONDateFormat, map[string]any{"field": dateErr.Field}
	case errors.As(err, &timeErr):
		return InvalidJSONDateFormat, nil
	case errors.As(err, &jsonSyntax), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return InvalidJSON, nil
	case errors.As(err, &valErr):
		return ClientError, map[string]any{"errors": valErr.Fields}
	case errors.Is(err, repository.ErrNotFound):
		return NotFound, nil
	case errors.Is(err, repository.ErrDuplicate):
		return Conflict, nil
	case errors.Is(err, repository.ErrInvalidField):
		return ClientError, nil
	default:
		return ServerError, map[string]any{"exception": rootType(err)}
	}
}

// rootType names the Go type of the innermost wrapped error.
func rootType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
