package model

import (
	"time"

	"github.com/vxgate/vxgate/internal/document"
)

// Client is an anonymous API caller identified by a random key.
type Client struct {
	Base
	Key        string
	UserID     string
	Calls      int64
	CallsReset time.Time
	Created    time.Time
	LastActive time.Time
}

// NewClient returns an unsaved client with a fresh counting window.
func NewClient(key string, now time.Time) *Client {
	now = now.UTC()
	return &Client{
		Key:        key,
		CallsReset: now,
		Created:    now,
		LastActive: now,
	}
}

// CollectionName implements repository.Entity.
func (c *Client) CollectionName() string { return ClientCollection }

// ToDocument implements repository.Entity.
func (c *Client) ToDocument() document.Document {
	doc := document.Document{
		"key":        c.Key,
		"userId":     optional(c.UserID),
		"calls":      c.Calls,
		"callsReset": document.FormatTime(c.CallsReset),
		"created":    document.FormatTime(c.Created),
		"lastActive": document.FormatTime(c.LastActive),
	}
	c.putID(doc)
	return doc
}

// FromDocument implements repository.Entity.
func (c *Client) FromDocument(doc document.Document, partial bool) error {
	r := document.NewReader(doc, partial)
	r.String("key", &c.Key)
	r.String("userId", &c.UserID)
	r.Int("calls", &c.Calls)
	r.Time("callsReset", &c.CallsReset)
	r.Time("created", &c.Created)
	r.Time("lastActive", &c.LastActive)
	return r.Err()
}

// Validate implements repository.Validator.
func (c *Client) Validate() []document.FieldError {
	var errs []document.FieldError
	if c.Key == "" {
		errs = append(errs, document.FieldError{Field: "key", Message: "required"})
	}
	if c.Calls < 0 {
		errs = append(errs, document.FieldError{Field: "calls", Message: "must not be negative"})
	}
	return errs
}

// Touch records one more call at now.
func (c *Client) Touch(now time.Time) {
	c.Calls++
	c.LastActive = now.UTC()
}

// ResetWindow starts a new counting window at now. The window start never
// moves backward.
func (c *Client) ResetWindow(now time.Time) {
	c.Calls = 0
	if now.After(c.CallsReset) {
		c.CallsReset = now.UTC()
	}
}

// Public returns the client as sent to its owner.
func (c *Client) Public(hideID bool) document.Document {
	return public(c.ToDocument(), hideID)
}
