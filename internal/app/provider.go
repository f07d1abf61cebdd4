package app

import (
	"context"
	"strings"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/model"
)

// demoTokenPrefix marks bundles created by demo login.
const demoTokenPrefix = "demo-"

// HybridProvider serves demo sessions from seeded in-memory drives and
// everything else from Google Drive.
type HybridProvider struct {
	google adapter.Provider
	demo   adapter.Provider
}

func (h *HybridProvider) ClientFor(ctx context.Context, bundle *model.CredentialBundle) (adapter.ObjectClient, error) {
	if strings.HasPrefix(bundle.AccessToken, demoTokenPrefix) {
		return h.demo.ClientFor(ctx, bundle)
	}
	return h.google.ClientFor(ctx, bundle)
}
