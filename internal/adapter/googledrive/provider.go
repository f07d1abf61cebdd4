package googledrive

import (
	"context"
	"fmt"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/auth"
	"github.com/jun/cloudmover/internal/model"
)

// Provider implements adapter.Provider for Google Drive.
type Provider struct{}

// NewProvider creates a Google Drive provider.
func NewProvider() *Provider {
	return &Provider{}
}

// ClientFor returns a DriveAdapter acting as the bundle's identity.
func (p *Provider) ClientFor(ctx context.Context, bundle *model.CredentialBundle) (adapter.ObjectClient, error) {
	client := auth.HTTPClient(ctx, bundle)

	storage, err := NewDriveAdapter(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}
	return storage, nil
}
