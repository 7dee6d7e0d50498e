package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vxgate/vxgate/internal/document"
)

// Account field constraints.
const (
	UsernameMinLength = 4
	PasswordMinLength = 4
)

// User is an authenticated account. Username and email are stored lowercased.
type User struct {
	Base
	Username         string
	EmailAddress     string
	Password         string // encoded hash, never the plaintext
	Language         string
	Timezone         string
	VerificationCode string
	ResetCode        string
	Verified         bool
	Active           bool
	Created          time.Time
	LastActive       time.Time
}

// CollectionName implements repository.Entity.
func (u *User) CollectionName() string { return UserCollection }

// ToDocument implements repository.Entity.
func (u *User) ToDocument() document.Document {
	doc := document.Document{
		"username":         u.Username,
		"emailAddress":     u.EmailAddress,
		"password":         optional(u.Password),
		"language":         optional(u.Language),
		"timezone":         optional(u.Timezone),
		"verificationCode": optional(u.VerificationCode),
		"resetCode":        optional(u.ResetCode),
		"verified":         u.Verified,
		"active":           u.Active,
		"created":          document.FormatTime(u.Created),
		"lastActive":       document.FormatTime(u.LastActive),
	}
	u.putID(doc)
	return doc
}

// FromDocument implements repository.Entity.
func (u *User) FromDocument(doc document.Document, partial bool) error {
	r := document.NewReader(doc, partial)
	r.String("username", &u.Username)
	r.String("emailAddress", &u.EmailAddress)
	r.String("password", &u.Password)
	r.String("language", &u.Language)
	r.String("timezone", &u.Timezone)
	r.String("verificationCode", &u.VerificationCode)
	r.String("resetCode", &u.ResetCode)
	r.Bool("verified", &u.Verified)
	r.Bool("active", &u.Active)
	r.Time("created", &u.Created)
	r.Time("lastActive", &u.LastActive)
	return r.Err()
}

// Normalize lowercases the unique, case-insensitive fields.
func (u *User) Normalize() {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.EmailAddress = strings.ToLower(strings.TrimSpace(u.EmailAddress))
}

// Validate implements repository.Validator.
func (u *User) Validate() []document.FieldError {
	var errs []document.FieldError
	if msg := CheckUsername(u.Username); msg != "" {
		errs = append(errs, document.FieldError{Field: "username", Message: msg})
	}
	if msg := CheckEmail(u.EmailAddress); msg != "" {
		errs = append(errs, document.FieldError{Field: "emailAddress", Message: msg})
	}
	return errs
}

// Public returns the user without credentials or one-time codes.
func (u *User) Public(hideID bool) document.Document {
	return public(u.ToDocument(), hideID, "password", "verificationCode", "resetCode")
}

// CheckUsername returns a message describing why name is unacceptable, or "".
func CheckUsername(name string) string {
	if utf8.RuneCountInString(name) < UsernameMinLength {
		return "must be at least 4 characters"
	}
	return ""
}

// CheckEmail returns a message describing why email is unacceptable, or "".
func CheckEmail(email string) string {
	if !ValidEmail(email) {
		return "must be a valid email address"
	}
	return ""
}

// CheckPassword returns a message describing why password is unacceptable, or "".
func CheckPassword(password string) string {
	if utf8.RuneCountInString(password) < PasswordMinLength {
		return "must be at least 4 characters"
	}
	return ""
}
