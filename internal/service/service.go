// Package service provides business logic for the application.
package service

import (
	"errors"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/document"
)

// Service errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccessDenied        = errors.New("access denied")
	ErrKeyCollision        = errors.New("could not generate a unique client key")
	ErrAttachmentsDisabled = errors.New("attachments are not configured")
)

// PatchError aggregates the field failures of a partial update.
type PatchError struct {
	Fields []document.FieldError
}

func (e *PatchError) Error() string {
	return (&document.ValidationError{Fields: e.Fields}).Error()
}

func defaults(logger *slog.Logger, clk clock.Clock) (*slog.Logger, clock.Clock) {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return logger, clk
}
