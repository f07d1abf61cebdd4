package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jun/cloudmover/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLeeway = 60 * time.Second

	maxVerifyAttempts = 3
	skewRetryDelay    = time.Second
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier checks Google-issued ID tokens.
type Verifier struct {
	keys   KeySource
	leeway time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewVerifier creates a Verifier using keys for signature checks.
func NewVerifier(keys KeySource) *Verifier {
	return &Verifier{
		keys:   keys,
		leeway: DefaultLeeway,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isClockSkew reports failures that can clear up once the local clock catches
// up with the issuer's.
func isClockSkew(err error) bool {
	return errors.Is(err, jwt.ErrTokenNotValidYet) || errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
}

// Verify validates idToken's signature, audience, issuer, and time claims.
// Clock-skew failures are retried with a fixed delay; anything else fails at once.
func (v *Verifier) Verify(ctx context.Context, idToken, clientID string) (*model.Identity, error) {
	var err error
	for attempt := 1; attempt <= maxVerifyAttempts; attempt++ {
		var id *model.Identity
		id, err = v.verifyOnce(ctx, idToken, clientID)
		if err == nil {
			return id, nil
		}
		if !isClockSkew(err) || attempt == maxVerifyAttempts {
			return nil, &VerificationError{Attempts: attempt, Err: err}
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("id token not yet valid, retrying")
		if serr := v.sleep(ctx, skewRetryDelay); serr != nil {
			return nil, &VerificationError{Attempts: attempt, Err: err}
		}
	}
	return nil, &VerificationError{Attempts: maxVerifyAttempts, Err: err}
}

func (v *Verifier) verifyOnce(ctx context.Context, idToken, clientID string) (*model.Identity, error) {
	var claims googleClaims
	_, err := jwt.ParseWithClaims(idToken, &claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: token has no kid", ErrUnknownKey)
			}
			return v.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(clientID),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(googleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", jwt.ErrTokenInvalidIssuer, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", jwt.ErrTokenInvalidClaims)
	}

	return &model.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
