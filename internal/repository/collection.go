package repository

import (
	"context"
	"errors"

	"github.com/vxgate/vxgate/internal/document"
)

// Entity is implemented by every type stored through a Collection.
type Entity interface {
	CollectionName() string
	ID() string
	SetID(id string)
	ToDocument() document.Document
	// FromDocument copies fields from doc. With partial set, only keys present
	// in doc are applied and all other fields keep their current values.
	FromDocument(doc document.Document, partial bool) error
}

// Validator is implemented by entities with invariant checks.
type Validator interface {
	Validate() []document.FieldError
}

// Collection provides typed persistence operations for one entity type.
type Collection[T Entity] struct {
	store Store
	name  string
	newFn func() T
}

// NewCollection binds an entity type to store. newFn returns an empty entity.
func NewCollection[T Entity](store Store, newFn func() T) *Collection[T] {
	return &Collection[T]{
		store: store,
		name:  newFn().CollectionName(),
		newFn: newFn,
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Save inserts e when it has no id, otherwise replaces the stored document.
// The assigned id is set on e.
func (c *Collection[T]) Save(ctx context.Context, e T) (T, error) {
	doc := e.ToDocument()
	if id := e.ID(); id != "" {
		doc[document.IDField] = id
	} else {
		delete(doc, document.IDField)
	}

	id, err := c.store.Save(ctx, c.name, doc)
	if err != nil {
		return e, c.wrap("save", err)
	}
	e.SetID(id)
	return e, nil
}

// FindByID returns the entity with the given id or ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (T, error) {
	return c.findOne(ctx, "find by id", ByID(id))
}

// FindOneByField returns the first entity whose field equals value or ErrNotFound.
func (c *Collection[T]) FindOneByField(ctx context.Context, field string, value any) (T, error) {
	return c.findOne(ctx, "find one", Where(Eq(field, value)))
}

// FindByField returns every entity whose field equals value.
func (c *Collection[T]) FindByField(ctx context.Context, field string, value any) ([]T, error) {
	return c.FindWithOptions(ctx, Where(Eq(field, value)), FindOptions{})
}

// FindWithOptions returns a page of entities matching filter.
func (c *Collection[T]) FindWithOptions(ctx context.Context, filter Filter, opts FindOptions) ([]T, error) {
	docs, err := c.store.Find(ctx, c.name, filter, opts)
	if err != nil {
		return nil, c.wrap("find", err)
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		e, err := c.decode(doc)
		if err != nil {
			return nil, c.wrap("decode", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of entities matching filter.
func (c *Collection[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := c.store.Count(ctx, c.name, filter)
	if err != nil {
		return 0, c.wrap("count", err)
	}
	return n, nil
}

// Remove deletes every entity matching filter and returns how many were removed.
func (c *Collection[T]) Remove(ctx context.Context, filter Filter) (int64, error) {
	n, err := c.store.Remove(ctx, c.name, filter)
	if err != nil {
		return 0, c.wrap("remove", err)
	}
	return n, nil
}

// RemoveByID deletes one entity and reports whether it existed.
func (c *Collection[T]) RemoveByID(ctx context.Context, id string) (bool, error) {
	n, err := c.Remove(ctx, ByID(id))
	return n > 0, err
}

// Validate runs the entity's invariant checks, if it has any.
func (c *Collection[T]) Validate(e T) []document.FieldError {
	if v, ok := any(e).(Validator); ok {
		return v.Validate()
	}
	return nil
}

func (c *Collection[T]) findOne(ctx context.Context, op string, filter Filter) (T, error) {
	var zero T

	doc, err := c.store.FindOne(ctx, c.name, filter)
	if err != nil {
		return zero, c.wrap(op, err)
	}

	e, err := c.decode(doc)
	if err != nil {
		return zero, c.wrap("decode", err)
	}
	return e, nil
}

func (c *Collection[T]) decode(doc document.Document) (T, error) {
	e := c.newFn()
	if err := e.FromDocument(doc, false); err != nil {
		return e, err
	}
	e.SetID(doc.ID())
	return e, nil
}

// wrap converts driver failures into PersistenceError. Not-found, duplicate
// and invalid-field errors pass through so callers can match them directly.
func (c *Collection[T]) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidField) {
		return err
	}
	return &PersistenceError{Op: op, Collection: c.name, Err: err}
}
