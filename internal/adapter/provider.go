package adapter

import (
	"context"

	"github.com/jun/cloudmover/internal/model"
)

// Provider builds an ObjectClient that acts as the identity in a credential bundle.
type Provider interface {
	ClientFor(ctx context.Context, bundle *model.CredentialBundle) (ObjectClient, error)
}
