// Package model defines domain entities for the application.
package model

import (
	"net/mail"
	"strings"

	"github.com/vxgate/vxgate/internal/document"
)

// Collection names.
const (
	ClientCollection = "client"
	UserCollection   = "user"
	EntityCollection = "entity"
)

// Base carries the store-assigned identifier shared by all entities.
type Base struct {
	id string
}

// ID returns the store-assigned identifier, or "" before the first save.
func (b *Base) ID() string { return b.id }

// SetID sets the identifier.
func (b *Base) SetID(id string) { b.id = id }

func (b *Base) putID(doc document.Document) {
	if b.id != "" {
		doc[document.IDField] = b.id
	}
}

// public strips fields that must never leave the server.
func public(doc document.Document, hideID bool, secret ...string) document.Document {
	if hideID {
		secret = append(secret, document.IDField)
	}
	return doc.Without(secret...)
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ValidEmail reports whether s is a bare email address such as "ann@example.com".
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at:], ".")
}
