package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vxgate/vxgate/internal/blob"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

// DefaultPageLimit is used when a list request has no positive limit.
const DefaultPageLimit = 100

// EntityServiceConfig holds EntityService dependencies.
// Blobs may be nil, which disables attachments.
type EntityServiceConfig struct {
	Logger   *slog.Logger
	Entities *repository.Collection[*model.Entity]
	Blobs    blob.Store
	Clock    clock.Clock
}

// EntityService implements CRUD for generic entities.
type EntityService struct {
	logger   *slog.Logger
	entities *repository.Collection[*model.Entity]
	blobs    blob.Store
	clock    clock.Clock
}

// NewEntityService creates a new EntityService.
func NewEntityService(cfg EntityServiceConfig) *EntityService {
	logger, clk := defaults(cfg.Logger, cfg.Clock)
	return &EntityService{
		logger:   logger,
		entities: cfg.Entities,
		blobs:    cfg.Blobs,
		clock:    clk,
	}
}

// ListInput selects one page of entities.
type ListInput struct {
	Limit int64
	Page  int64
	Sort  string // e.g. "type,-created"
}

// Page is one page of a listing.
type Page struct {
	Total int64               `json:"total"`
	Page  int64               `json:"page"`
	Limit int64               `json:"limit"`
	Data  []document.Document `json:"data"`
}

// List returns a page of entities and the total count.
func (s *EntityService) List(ctx context.Context, in ListInput) (*Page, error) {
	if in.Limit <= 0 {
		in.Limit = DefaultPageLimit
	}
	if in.Page < 0 {
		in.Page = 0
	}
	if in.Page > math.MaxInt64/in.Limit {
		return nil, document.NewValidationError([]document.FieldError{{Field: "page", Message: "out of range"}})
	}

	sort, err := repository.ParseSort(in.Sort)
	if err != nil {
		return nil, err
	}

	total, err := s.entities.Count(ctx, nil)
	if err != nil {
		return nil, err
	}

	entities, err := s.entities.FindWithOptions(ctx, nil, repository.FindOptions{
		Limit: in.Limit,
		Skip:  in.Limit * in.Page,
		Sort:  sort,
	})
	if err != nil {
		return nil, err
	}

	data := make([]document.Document, len(entities))
	for i, e := range entities {
		data[i] = e.ToDocument()
	}

	return &Page{Total: total, Page: in.Page, Limit: in.Limit, Data: data}, nil
}

// Get returns one entity.
func (s *EntityService) Get(ctx context.Context, id string) (*model.Entity, error) {
	return s.entities.FindByID(ctx, id)
}

// Create decodes doc into a new entity and stores it.
func (s *EntityService) Create(ctx context.Context, doc document.Document) (*model.Entity, error) {
	e := &model.Entity{}
	if err := e.FromDocument(doc.Without(document.IDField), false); err != nil {
		return nil, err
	}

	now := s.now()
	if e.Created.IsZero() {
		e.Created = now
	}
	e.Updated = now

	if err := document.NewValidationError(e.Validate()); err != nil {
		return nil, err
	}
	return s.entities.Save(ctx, e)
}

// Patch applies the keys present in doc to the stored entity.
func (s *EntityService) Patch(ctx context.Context, id string, doc document.Document) (*model.Entity, error) {
	e, err := s.entities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.FromDocument(doc.Without(document.IDField), true); err != nil {
		return nil, err
	}
	e.Updated = s.now()

	if err := document.NewValidationError(e.Validate()); err != nil {
		return nil, err
	}
	return s.entities.Save(ctx, e)
}

// Delete removes one entity and its attachment.
func (s *EntityService) Delete(ctx context.Context, id string) error {
	removed, err := s.entities.RemoveByID(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return repository.ErrNotFound
	}

	s.dropAttachments(ctx, id)
	return nil
}

// BulkDelete removes every entity in ids and returns how many existed.
func (s *EntityService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed, err := s.entities.Remove(ctx, repository.Where(repository.In(document.IDField, ids)))
	if err != nil {
		return 0, err
	}

	s.dropAttachments(ctx, ids...)
	return removed, nil
}

// PutAttachment stores body as the attachment of entity id.
func (s *EntityService) PutAttachment(ctx context.Context, id string, body io.Reader, size int64, contentType string) error {
	if s.blobs == nil {
		return ErrAttachmentsDisabled
	}
	if _, err := s.entities.FindByID(ctx, id); err != nil {
		return err
	}
	return s.blobs.Put(ctx, attachmentKey(id), body, size, contentType)
}

// GetAttachment opens the attachment of entity id. Callers must close the body.
func (s *EntityService) GetAttachment(ctx context.Context, id string) (*blob.Object, error) {
	if s.blobs == nil {
		return nil, ErrAttachmentsDisabled
	}

	obj, err := s.blobs.Get(ctx, attachmentKey(id))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("attachment %s: %w", id, repository.ErrNotFound)
	}
	return obj, err
}

func (s *EntityService) dropAttachments(ctx context.Context, ids ...string) {
	if s.blobs == nil {
		return
	}
	for _, id := range ids {
		if err := s.blobs.Delete(ctx, attachmentKey(id)); err != nil {
			s.logger.Warn("failed to delete attachment", "entity_id", id, "error", err)
		}
	}
}

func (s *EntityService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func attachmentKey(id string) string {
	return model.EntityCollection + "/" + id
}
