package auth

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publicPEM(t *testing.T) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&testKey.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func newCertServer(t *testing.T, cacheControl string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	body, err := json.Marshal(map[string]string{"k1": publicPEM(t), "broken": "not a pem"})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if cacheControl != "" {
			w.Header().Set("Cache-Control", cacheControl)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCertCache_FetchesOnceForConcurrentCallers(t *testing.T) {
	srv, hits := newCertServer(t, "public, max-age=3600")
	c := NewCertCache(srv.Client(), srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, err := c.Key(context.Background(), "k1")
			assert.NoError(t, err)
			assert.True(t, k.Equal(&testKey.PublicKey))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestCertCache_UnknownKidRefreshesAtMostOncePerInterval(t *testing.T) {
	srv, hits := newCertServer(t, "max-age=3600")
	c := NewCertCache(srv.Client(), srv.URL)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	for _, kid := range []string{"forged-1", "forged-2", "broken"} {
		_, err = c.Key(context.Background(), kid)
		assert.ErrorIs(t, err, ErrUnknownKey)
	}
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(minRefreshInterval + time.Second)
	_, err = c.Key(context.Background(), "rotated")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(2), hits.Load())

	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCertCache_RefreshSurvivesCallerCancellation(t *testing.T) {
	srv, hits := newCertServer(t, "max-age=3600")
	c := NewCertCache(srv.Client(), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	k, err := c.Key(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, k.Equal(&testKey.PublicKey))
	assert.Equal(t, int32(1), hits.Load())
}

func TestCertCache_ExpiresWithMaxAge(t *testing.T) {
	srv, hits := newCertServer(t, "max-age=60")
	c := NewCertCache(srv.Client(), srv.URL)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(61 * time.Second)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCertCache_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewCertCache(srv.Client(), srv.URL).Key(context.Background(), "k1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 5*time.Minute, maxAge("public, max-age=300, must-revalidate"))
	assert.Equal(t, defaultCertTTL, maxAge(""))
	assert.Equal(t, defaultCertTTL, maxAge("max-age=abc"))
}
