package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL publishes Google's current ID token signing certificates as PEM.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"

const (
	defaultCertTTL = time.Hour

	// minRefreshInterval spaces out refreshes caused by unknown key ids.
	minRefreshInterval = time.Minute
	refreshTimeout     = 10 * time.Second
)

// KeySource resolves a signing key by its key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// CertCache fetches and caches Google's signing certificates. Concurrent
// refreshes collapse into one request.
type CertCache struct {
	client *http.Client
	url    string
	now    func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
	expires time.Time

	group singleflight.Group
}

// NewCertCache creates a cache reading from url. A nil client uses http.DefaultClient.
func NewCertCache(client *http.Client, url string) *CertCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &CertCache{client: client, url: url, now: time.Now}
}

func (c *CertCache) cached(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.now().After(c.expires) {
		return nil, false
	}
	k, ok := c.keys[kid]
	return k, ok
}

// recentlyFetched reports whether the cached set is unexpired and younger
// than minRefreshInterval.
func (c *CertCache) recentlyFetched() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	return !c.fetched.IsZero() && !now.After(c.expires) && now.Sub(c.fetched) < minRefreshInterval
}

// Key returns the key for kid, refreshing the set when it has expired or
// when kid is unknown and the set is more than minRefreshInterval old.
func (c *CertCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := c.cached(kid); ok {
		return k, nil
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		if _, ok := c.cached(kid); ok || c.recentlyFetched() {
			return nil, nil
		}
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.refresh(fctx)
	})
	if err != nil {
		return nil, err
	}

	if k, ok := c.cached(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}

func (c *CertCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certs: HTTP %d", resp.StatusCode)
	}

	var pems map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return fmt.Errorf("decode signing certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, p := range pems {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(p))
		if err != nil {
			log.Warn().Err(err).Str("kid", kid).Msg("skipping unparsable signing cert")
			continue
		}
		keys[kid] = k
	}

	c.mu.Lock()
	c.keys = keys
	c.fetched = c.now()
	c.expires = c.fetched.Add(maxAge(resp.Header.Get("Cache-Control")))
	c.mu.Unlock()

	log.Debug().Int("keys", len(keys)).Msg("refreshed signing certs")
	return nil
}

// maxAge reads max-age from a Cache-Control header, defaulting to an hour.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		v, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age=")
		if !ok {
			continue
		}
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultCertTTL
}
