// Package repository provides the document store abstraction and the generic
// persistence contract every entity type is stored through.
package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vxgate/vxgate/internal/document"
)

// Repository errors.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicate    = errors.New("duplicate value for unique field")
	ErrInvalidField = errors.New("invalid field name")
)

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the document database driver. Documents carry their identifier
// under document.IDField.
type Store interface {
	// Save inserts doc when it has no id and returns the assigned one;
	// otherwise it replaces the stored document with the same id.
	Save(ctx context.Context, collection string, doc document.Document) (string, error)
	// FindOne returns the first match or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (document.Document, error)
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]document.Document, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Remove(ctx context.Context, collection string, filter Filter) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Op is a filter comparison operator.
type Op string

// Supported operators.
const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpIn  Op = "in"
)

// Condition compares one top-level field against a value.
// For OpIn, Value must be a slice.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

// Where builds a filter from conditions.
func Where(conds ...Condition) Filter { return Filter(conds) }

// Eq matches documents whose field equals value.
func Eq(field string, value any) Condition { return Condition{Field: field, Op: OpEq, Value: value} }

// Ne matches documents whose field differs from value, including documents without it.
func Ne(field string, value any) Condition { return Condition{Field: field, Op: OpNe, Value: value} }

// Lt matches documents whose field is less than value.
func Lt(field string, value any) Condition { return Condition{Field: field, Op: OpLt, Value: value} }

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value any) Condition { return Condition{Field: field, Op: OpLte, Value: value} }

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) Condition { return Condition{Field: field, Op: OpGt, Value: value} }

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value any) Condition { return Condition{Field: field, Op: OpGte, Value: value} }

// In matches documents whose field equals any of values.
func In[V any](field string, values []V) Condition {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Condition{Field: field, Op: OpIn, Value: vals}
}

// ByID matches the document with the given id.
func ByID(id string) Filter { return Where(Eq(document.IDField, id)) }

// Validate checks every field name and operator.
func (f Filter) Validate() error {
	for _, c := range f {
		if err := ValidateField(c.Field); err != nil {
			return err
		}
		switch c.Op {
		case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		case OpIn:
			if _, ok := c.Value.([]any); !ok {
				return fmt.Errorf("operator in on %q needs a []any value", c.Field)
			}
		default:
			return fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return nil
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls pagination and ordering. Limit <= 0 means unbounded.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  []SortField
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField rejects names that are not plain top-level identifiers.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// ParseSort parses "field1,+field2,-field3" into sort fields.
// A leading '-' sorts descending; '+' or no prefix sorts ascending.
func ParseSort(s string) ([]SortField, error) {
	var fields []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		sf := SortField{Field: part}
		switch part[0] {
		case '-':
			sf = SortField{Field: part[1:], Desc: true}
		case '+':
			sf = SortField{Field: part[1:]}
		}

		if err := ValidateField(sf.Field); err != nil {
			return nil, err
		}
		fields = append(fields, sf)
	}
	return fields, nil
}
