package model

import (
	"time"
	"unicode/utf8"

	"github.com/vxgate/vxgate/internal/document"
)

// TitleMaxLength bounds Entity.Title.
const TitleMaxLength = 512

// Entity is a generic domain document.
type Entity struct {
	Base
	Type      string
	Title     string
	Body      string
	Tags      []string
	Nested    document.Document
	Author    string
	Data      []byte
	Version   int64
	Validated bool
	Created   time.Time
	Updated   time.Time
	Deleted   time.Time // soft-delete marker; zero while live
}

// CollectionName implements repository.Entity.
func (e *Entity) CollectionName() string { return EntityCollection }

// ToDocument implements repository.Entity.
func (e *Entity) ToDocument() document.Document {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	var data any
	if len(e.Data) > 0 {
		data = e.Data // marshalled as base64
	}

	var nested any
	if e.Nested != nil {
		nested = map[string]any(e.Nested)
	}

	doc := document.Document{
		"type":      e.Type,
		"title":     e.Title,
		"body":      e.Body,
		"tags":      tags,
		"nested":    nested,
		"author":    optional(e.Author),
		"data":      data,
		"version":   e.Version,
		"validated": e.Validated,
		"created":   document.FormatTime(e.Created),
		"updated":   document.FormatTime(e.Updated),
		"deleted":   document.FormatTime(e.Deleted),
	}
	e.putID(doc)
	return doc
}

// FromDocument implements repository.Entity.
func (e *Entity) FromDocument(doc document.Document, partial bool) error {
	r := document.NewReader(doc, partial)
	r.String("type", &e.Type)
	r.String("title", &e.Title)
	r.String("body", &e.Body)
	r.Strings("tags", &e.Tags)
	r.Object("nested", &e.Nested)
	r.String("author", &e.Author)
	r.Bytes("data", &e.Data)
	r.Int("version", &e.Version)
	r.Bool("validated", &e.Validated)
	r.Time("created", &e.Created)
	r.Time("updated", &e.Updated)
	r.Time("deleted", &e.Deleted)
	return r.Err()
}

// Validate implements repository.Validator.
func (e *Entity) Validate() []document.FieldError {
	var errs []document.FieldError
	if e.Type == "" {
		errs = append(errs, document.FieldError{Field: "type", Message: "required"})
	}
	if utf8.RuneCountInString(e.Title) > TitleMaxLength {
		errs = append(errs, document.FieldError{Field: "title", Message: "must be at most 512 characters"})
	}
	if e.Version < 0 {
		errs = append(errs, document.FieldError{Field: "version", Message: "must not be negative"})
	}
	for _, tag := range e.Tags {
		if tag == "" {
			errs = append(errs, document.FieldError{Field: "tags", Message: "must not contain empty tags"})
			break
		}
	}
	return errs
}
