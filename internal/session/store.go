// Package session keeps OAuth credential bundles behind opaque, expiring
// session tokens so stateless handlers can act as a logged-in identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jun/cloudmover/internal/crypto"
	"github.com/jun/cloudmover/internal/model"
)

// DefaultTTL bounds how long a leaked session token stays usable.
const DefaultTTL = 24 * time.Hour

const (
	credentialsPrefix = "credentials:"
	rolePrefix        = "session:"
)

func credentialsKey(token string) string { return credentialsPrefix + token }

func roleKey(role model.Role) string { return rolePrefix + string(role) }

// Store maps session tokens to credential bundles.
type Store struct {
	backend Backend
	sealer  crypto.Encryptor
	ttl     time.Duration

	now      func() time.Time
	newToken func() (string, error)
}

// NewStore creates a Store. A ttl of zero selects DefaultTTL.
func NewStore(backend Backend, sealer crypto.Encryptor, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sealer == nil {
		sealer = crypto.NewMockEncryptor()
	}
	return &Store{
		backend:  backend,
		sealer:   sealer,
		ttl:      ttl,
		now:      time.Now,
		newToken: newRandomToken,
	}
}

// TTL is how long a stored session lives.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func newRandomToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return id.String(), nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// Store persists bundle under a fresh token and points the role index at it.
// Any earlier token for the same role stays resolvable directly until it expires.
func (s *Store) Store(ctx context.Context, bundle model.CredentialBundle, role model.Role) (string, error) {
	if !bundle.Valid() {
		return "", errors.New("refusing to store credentials without an access token")
	}

	token, err := s.newToken()
	if err != nil {
		return "", err
	}

	bundle.Role = role
	if bundle.CreatedAt.IsZero() {
		bundle.CreatedAt = s.now().UTC()
	}

	fields, err := encodeBundle(ctx, s.sealer, bundle)
	if err != nil {
		return "", err
	}

	if err := s.backend.SetFields(ctx, credentialsKey(token), fields, s.ttl); err != nil {
		return "", unavailable(err)
	}
	if err := s.backend.SetValue(ctx, roleKey(role), token, s.ttl); err != nil {
		return "", unavailable(err)
	}

	return token, nil
}

// Resolve returns the bundle for token, or ErrSessionNotFound.
func (s *Store) Resolve(ctx context.Context, token string) (*model.CredentialBundle, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	fields, err := s.backend.GetFields(ctx, credentialsKey(token))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	bundle, err := decodeBundle(ctx, s.sealer, fields)
	if err != nil {
		return nil, err
	}
	if !bundle.Valid() {
		return nil, ErrSessionNotFound
	}
	return bundle, nil
}

// ResolveByRole follows the role index to the most recent login for role.
// The index can outlive the bundle it points to; that case is ErrSessionNotFound.
func (s *Store) ResolveByRole(ctx context.Context, role model.Role) (*model.CredentialBundle, error) {
	token, err := s.backend.GetValue(ctx, roleKey(role))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return s.Resolve(ctx, token)
}

// Revoke deletes the bundle for token. The role index is left to expire.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	deleted, err := s.backend.Delete(ctx, credentialsKey(token))
	if err != nil {
		return false, unavailable(err)
	}
	return deleted, nil
}

// ListRoles returns the current token for each role that has one.
func (s *Store) ListRoles(ctx context.Context) (map[model.Role]string, error) {
	values, err := s.backend.ScanValues(ctx, rolePrefix)
	if err != nil {
		return nil, unavailable(err)
	}

	roles := make(map[model.Role]string, len(values))
	for key, token := range values {
		roles[model.Role(strings.TrimPrefix(key, rolePrefix))] = token
	}
	return roles, nil
}

// Redact shortens a token for log output.
func Redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
