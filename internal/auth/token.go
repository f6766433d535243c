package auth

import (
	"encoding/json"
	"time"

	"github.com/celerix-dev/robot-ops/internal/vault"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

type claims struct {
	ID        string        `json:"jti"`
	AccountID string        `json:"uid"`
	Email     string        `json:"sub"`
	Name      string        `json:"name"`
	Access    schema.Access `json:"access"`
	ExpiresAt int64         `json:"exp"`
}

// Tokens issues and verifies sealed identity tokens.
type Tokens struct {
	sealer  *vault.Sealer
	ttl     time.Duration
	revoked cmap.ConcurrentMap[string, time.Time] // token id -> expiry
	now     func() time.Time
}

// NewTokens creates a token issuer keyed with key (32 bytes) whose tokens live for ttl.
func NewTokens(key []byte, ttl time.Duration) (*Tokens, error) {
	sealer, err := vault.NewSealer(key)
	if err != nil {
		return nil, errors.Wrap(err, "token key")
	}
	return &Tokens{
		sealer:  sealer,
		ttl:     ttl,
		revoked: cmap.New[time.Time](),
		now:     time.Now,
	}, nil
}

// Issue creates a token for the account.
func (t *Tokens) Issue(u schema.UserAccount) (string, Identity, error) {
	id := Identity{
		TokenID:   uuid.NewString(),
		AccountID: u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Access:    u.Access,
		ExpiresAt: t.now().Add(t.ttl).Truncate(time.Second),
	}
	raw, err := json.Marshal(claims{
		ID:        id.TokenID,
		AccountID: id.AccountID,
		Email:     id.Email,
		Name:      id.Name,
		Access:    id.Access,
		ExpiresAt: id.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", Identity{}, errors.Wrap(err, "encode claims")
	}
	token, err := t.sealer.Seal(raw)
	if err != nil {
		return "", Identity{}, err
	}
	return token, id, nil
}

// Verify decodes a token and rejects expired or revoked ones.
func (t *Tokens) Verify(token string) (Identity, error) {
	raw, err := t.sealer.Open(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{
		TokenID:   c.ID,
		AccountID: c.AccountID,
		Email:     c.Email,
		Name:      c.Name,
		Access:    c.Access,
		ExpiresAt: time.Unix(c.ExpiresAt, 0),
	}
	if !t.now().Before(id.ExpiresAt) {
		return Identity{}, ErrTokenExpired
	}
	if t.revoked.Has(id.TokenID) {
		return Identity{}, ErrTokenRevoked
	}
	return id, nil
}

// Revoke invalidates the token behind id until it would have expired anyway.
func (t *Tokens) Revoke(id Identity) {
	t.revoked.Set(id.TokenID, id.ExpiresAt)
}

// Sweep forgets revocations of tokens that have expired and returns how many were dropped.
func (t *Tokens) Sweep() int {
	now := t.now()
	dropped := 0
	for item := range t.revoked.IterBuffered() {
		if !now.Before(item.Val) {
			t.revoked.Remove(item.Key)
			dropped++
		}
	}
	return dropped
}
