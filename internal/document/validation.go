package document

import "strings"

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors for one request.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Required returns a "required" error for every key missing from doc or set to null.
func Required(doc Document, keys ...string) []FieldError {
	var errs []FieldError
	for _, k := range keys {
		if v, ok := doc[k]; !ok || v == nil {
			errs = append(errs, FieldError{Field: k, Message: "required"})
		}
	}
	return errs
}
