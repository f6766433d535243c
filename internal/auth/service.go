package auth

import (
	"context"
	"strings"

	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidEmail       = errors.New("invalid user mail id or not a proper e-mail format")
	ErrPasswordTooShort   = errors.New("minimum 4 characters should be password")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidAccess      = errors.New("invalid access level")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Service manages accounts and sessions on top of a UserStore.
type Service struct {
	users  engine.UserStore
	tokens *Tokens
	log    *logrus.Entry
}

func NewService(users engine.UserStore, tokens *Tokens) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		log:    logrus.WithField("component", "auth"),
	}
}

// Register creates an account with user access.
func (s *Service) Register(ctx context.Context, email, name, password string) (schema.UserAccount, error) {
	return s.create(ctx, email, name, password, schema.AccessUser)
}

func (s *Service) create(ctx context.Context, email, name, password string, access schema.Access) (schema.UserAccount, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if !ValidEmail(email) {
		return schema.UserAccount{}, ErrInvalidEmail
	}
	if name == "" {
		return schema.UserAccount{}, ErrNameRequired
	}
	hash, err := HashPassword(password)
	if err != nil {
		return schema.UserAccount{}, err
	}
	u := schema.UserAccount{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: hash, Access: access}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return schema.UserAccount{}, err
	}
	s.log.WithField("email", email).Info("user registered")
	return u, nil
}

// Login checks the credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Identity, error) {
	u, err := s.users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, engine.ErrUserNotFound) {
		return "", Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", Identity{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", Identity{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(u)
}

// Authenticate verifies a token and refreshes the identity from the account,
// so access changes and deletions apply to tokens already issued. A token
// issued to a deleted account stays invalid if the email is registered again.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	u, err := s.users.FindUserByEmail(ctx, id.Email)
	if errors.Is(err, engine.ErrUserNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, err
	}
	if u.ID != id.AccountID {
		return Identity{}, ErrInvalidToken
	}
	id.Name = u.Name
	id.Access = u.Access
	return id, nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(id Identity) {
	s.tokens.Revoke(id)
}

// ModifyAccess changes the access level of an account.
func (s *Service) ModifyAccess(ctx context.Context, email string, access schema.Access) (schema.UserAccount, error) {
	if !access.Valid() {
		return schema.UserAccount{}, ErrInvalidAccess
	}
	return s.users.SetAccess(ctx, email, access)
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	return s.users.DeleteUser(ctx, email)
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]schema.UserAccount, error) {
	return s.users.ListUsers(ctx)
}

// EnsureSuperAdmin creates the bootstrap super admin when no account uses its email yet.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, name, password string) error {
	_, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, engine.ErrUserNotFound) {
		return err
	}
	if _, err := s.create(ctx, email, name, password, schema.AccessSuperAdmin); err != nil {
		return errors.Wrap(err, "bootstrap super admin")
	}
	s.log.WithField("email", email).Warn("bootstrap super admin created")
	return nil
}
