package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/vxgate/vxgate/internal/auth"
	"github.com/vxgate/vxgate/internal/document"
	"github.com/vxgate/vxgate/internal/model"
	"github.com/vxgate/vxgate/internal/repository"
)

// Fields a user may change through Update.
var patchableUserFields = map[string]bool{
	"username":     true,
	"emailAddress": true,
	"password":     true,
	"language":     true,
	"timezone":     true,
}

// UserServiceConfig holds UserService dependencies.
type UserServiceConfig struct {
	Logger     *slog.Logger
	Users      *repository.Collection[*model.User]
	Clients    *repository.Collection[*model.Client]
	ClientSvc  *ClientService
	Clock      clock.Clock
	Iterations int
}

// UserService handles account signup, login and maintenance.
type UserService struct {
	logger     *slog.Logger
	users      *repository.Collection[*model.User]
	clients    *repository.Collection[*model.Client]
	clientSvc  *ClientService
	clock      clock.Clock
	iterations int
}

// NewUserService creates a new UserService.
func NewUserService(cfg UserServiceConfig) *UserService {
	logger, clk := defaults(cfg.Logger, cfg.Clock)
	if cfg.Iterations < 1 {
		cfg.Iterations = auth.DefaultIterations
	}
	return &UserService{
		logger:     logger,
		users:      cfg.Users,
		clients:    cfg.Clients,
		clientSvc:  cfg.ClientSvc,
		clock:      clk,
		iterations: cfg.Iterations,
	}
}

// SignupInput defines input for creating an account.
type SignupInput struct {
	Username     string
	EmailAddress string
	Password     string
	Language     string
	Timezone     string
}

// LoginInput identifies an account by username, email or both.
type LoginInput struct {
	Username     string
	EmailAddress string
	Password     string
}

// Signup validates in and creates an active account. Every failed check is
// reported in a single *document.ValidationError.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	user := &model.User{
		Username:     in.Username,
		EmailAddress: in.EmailAddress,
		Language:     in.Language,
		Timezone:     in.Timezone,
	}
	user.Normalize()

	var errs []document.FieldError
	if user.EmailAddress == "" {
		errs = append(errs, document.FieldError{Field: "emailAddress", Message: "required"})
	}
	if in.Password == "" {
		errs = append(errs, document.FieldError{Field: "password", Message: "required"})
	}
	if len(errs) > 0 {
		return nil, document.NewValidationError(errs)
	}

	if user.Username == "" {
		user.Username = user.EmailAddress
	}

	usernameOK := s.check(&errs, "username", model.CheckUsername(user.Username))
	emailOK := s.check(&errs, "emailAddress", model.CheckEmail(user.EmailAddress))
	s.check(&errs, "password", model.CheckPassword(in.Password))

	taken, err := s.taken(ctx, "", uniqueChecks{
		username: usernameOK, usernameValue: user.Username,
		email: emailOK, emailValue: user.EmailAddress,
	})
	if err != nil {
		return nil, err
	}
	errs = append(errs, taken...)
	if len(errs) > 0 {
		return nil, document.NewValidationError(errs)
	}

	now := s.now()
	hash, err := auth.HashPassword(in.Password, now, s.iterations)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	user.Password = hash
	user.VerificationCode = code
	user.Active = true
	user.Created = now
	user.LastActive = now

	return s.users.Save(ctx, user)
}

// Login authenticates in and binds the account to client.
func (s *UserService) Login(ctx context.Context, client *model.Client, in LoginInput) (*model.User, error) {
	if client == nil {
		return nil, ErrAccessDenied
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.EmailAddress))
	if in.Password == "" || (username == "" && email == "") {
		return nil, ErrInvalidCredentials
	}

	var user *model.User
	for _, lookup := range []struct{ field, value string }{
		{"username", username},
		{"emailAddress", email},
	} {
		if lookup.value == "" {
			continue
		}
		found, err := s.users.FindOneByField(ctx, lookup.field, lookup.value)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, err
		}
		if user != nil && user.ID() != found.ID() {
			return nil, ErrInvalidCredentials
		}
		user = found
	}

	ok, err := auth.VerifyPassword(in.Password, user.Password, user.Created)
	if err != nil {
		s.logger.Warn("stored password hash unusable", "user_id", user.ID(), "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user.LastActive = s.now()
	user, err = s.users.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	client.UserID = user.ID()
	if _, err := s.clients.Save(ctx, client); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout unbinds the account from client.
func (s *UserService) Logout(ctx context.Context, client *model.Client, user *model.User) error {
	if client == nil || user == nil {
		return ErrAccessDenied
	}

	client.UserID = ""
	_, err := s.clients.Save(ctx, client)
	return err
}

// Update applies patch to user. Only patchable fields may be present; all
// failures are collected into a *PatchError.
func (s *UserService) Update(ctx context.Context, user *model.User, patch document.Document) (*model.User, error) {
	if user == nil {
		return nil, ErrAccessDenied
	}

	var errs []document.FieldError
	values := make(map[string]string, len(patch))
	for _, key := range slices.Sorted(maps.Keys(patch)) {
		if key == document.IDField {
			continue
		}
		if !patchableUserFields[key] {
			errs = append(errs, document.FieldError{Field: key, Message: "cannot be changed"})
			continue
		}
		v, err := patch.String(key)
		if err != nil {
			errs = append(errs, document.FieldError{Field: key, Message: "must be a string"})
			continue
		}
		values[key] = v
	}

	next := *user
	checks := uniqueChecks{}

	if v, ok := values["username"]; ok {
		next.Username = strings.ToLower(strings.TrimSpace(v))
		if s.check(&errs, "username", model.CheckUsername(next.Username)) && next.Username != user.Username {
			checks.username, checks.usernameValue = true, next.Username
		}
	}
	if v, ok := values["emailAddress"]; ok {
		next.EmailAddress = strings.ToLower(strings.TrimSpace(v))
		if s.check(&errs, "emailAddress", model.CheckEmail(next.EmailAddress)) && next.EmailAddress != user.EmailAddress {
			checks.email, checks.emailValue = true, next.EmailAddress
		}
	}
	if v, ok := values["password"]; ok && s.check(&errs, "password", model.CheckPassword(v)) {
		hash, err := auth.HashPassword(v, user.Created, s.iterations)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		next.Password = hash
	}
	if v, ok := values["language"]; ok {
		next.Language = v
	}
	if v, ok := values["timezone"]; ok {
		next.Timezone = v
	}

	taken, err := s.taken(ctx, user.ID(), checks)
	if err != nil {
		return nil, err
	}
	errs = append(errs, taken...)
	if len(errs) > 0 {
		return nil, &PatchError{Fields: errs}
	}

	saved, err := s.users.Save(ctx, &next)
	if err != nil {
		return nil, err
	}
	*user = *saved
	return user, nil
}

// Delete removes user after re-checking the email address and password.
// Clients logged in as the user are detached first.
func (s *UserService) Delete(ctx context.Context, user *model.User, emailAddress, password string) error {
	if user == nil {
		return ErrAccessDenied
	}
	if !strings.EqualFold(strings.TrimSpace(emailAddress), user.EmailAddress) {
		return ErrAccessDenied
	}
	ok, err := auth.VerifyPassword(password, user.Password, user.Created)
	if err != nil || !ok {
		return ErrAccessDenied
	}

	detached, err := s.clientSvc.DetachUser(ctx, user.ID())
	if err != nil {
		return err
	}

	if _, err := s.users.RemoveByID(ctx, user.ID()); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", user.ID(), "clients_detached", detached)
	return nil
}

// check records msg against field and reports whether the field passed.
func (s *UserService) check(errs *[]document.FieldError, field, msg string) bool {
	if msg == "" {
		return true
	}
	*errs = append(*errs, document.FieldError{Field: field, Message: msg})
	return false
}

type uniqueChecks struct {
	username      bool
	usernameValue string
	email         bool
	emailValue    string
}

// taken runs the requested uniqueness lookups concurrently. Accounts with
// selfID are ignored so an unchanged value never conflicts with itself.
func (s *UserService) taken(ctx context.Context, selfID string, c uniqueChecks) ([]document.FieldError, error) {
	var usernameTaken, emailTaken bool

	g, gctx := errgroup.WithContext(ctx)
	if c.username {
		g.Go(func() error {
			var err error
			usernameTaken, err = s.exists(gctx, selfID, "username", c.usernameValue)
			return err
		})
	}
	if c.email {
		g.Go(func() error {
			var err error
			emailTaken, err = s.exists(gctx, selfID, "emailAddress", c.emailValue)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []document.FieldError
	if usernameTaken {
		errs = append(errs, document.FieldError{Field: "username", Message: "already taken"})
	}
	if emailTaken {
		errs = append(errs, document.FieldError{Field: "emailAddress", Message: "already registered"})
	}
	return errs, nil
}

func (s *UserService) exists(ctx context.Context, selfID, field, value string) (bool, error) {
	filter := repository.Where(repository.Eq(field, value))
	if selfID != "" {
		filter = append(filter, repository.Ne(document.IDField, selfID))
	}
	n, err := s.users.Count(ctx, filter)
	return n > 0, err
}

// now is truncated to the stored timestamp precision so the password salt
// derived from Created survives a round trip.
func (s *UserService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}
