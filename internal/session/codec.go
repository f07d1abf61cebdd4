package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jun/cloudmover/internal/crypto"
	"github.com/jun/cloudmover/internal/model"
)

// Flat record field names. They match the layout written by earlier
// deployments so existing sessions survive an upgrade.
const (
	fieldToken        = "token"
	fieldRefreshToken = "refresh_token"
	fieldIDToken      = "id_token"
	fieldTokenURI     = "token_uri"
	fieldClientID     = "client_id"
	fieldClientSecret = "client_secret"
	fieldScopes       = "scopes"
	fieldRole         = "session_type"
	fieldExpiry       = "expiry"
	fieldCreatedAt    = "created_at"
)

// sealedFields are encrypted before they leave the process.
var sealedFields = []string{fieldToken, fieldRefreshToken, fieldIDToken, fieldClientSecret}

func encodeBundle(ctx context.Context, sealer crypto.Encryptor, b model.CredentialBundle) (map[string]string, error) {
	fields := map[string]string{
		fieldToken:        b.AccessToken,
		fieldRefreshToken: b.RefreshToken,
		fieldIDToken:      b.IDToken,
		fieldTokenURI:     b.TokenURI,
		fieldClientID:     b.ClientID,
		fieldClientSecret: b.ClientSecret,
		fieldScopes:       strings.Join(b.Scopes, " "),
		fieldRole:         string(b.Role),
		fieldCreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
	if b.Expiry != nil {
		fields[fieldExpiry] = b.Expiry.UTC().Format(time.RFC3339)
	}

	for _, name := range sealedFields {
		sealed, err := sealer.Encrypt(ctx, fields[name])
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", name, err)
		}
		fields[name] = sealed
	}
	return fields, nil
}

func decodeBundle(ctx context.Context, sealer crypto.Encryptor, fields map[string]string) (*model.CredentialBundle, error) {
	opened := make(map[string]string, len(sealedFields))
	for _, name := range sealedFields {
		v, err := sealer.Decrypt(ctx, fields[name])
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		opened[name] = v
	}

	b := &model.CredentialBundle{
		AccessToken:  opened[fieldToken],
		RefreshToken: opened[fieldRefreshToken],
		IDToken:      opened[fieldIDToken],
		TokenURI:     fields[fieldTokenURI],
		ClientID:     fields[fieldClientID],
		ClientSecret: opened[fieldClientSecret],
		Scopes:       strings.Fields(fields[fieldScopes]),
		Role:         model.Role(fields[fieldRole]),
	}

	if v := fields[fieldExpiry]; v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parse expiry %q: %w", v, err)
		}
		b.Expiry = &t
	}
	if v := fields[fieldCreatedAt]; v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", v, err)
		}
		b.CreatedAt = t
	}
	return b, nil
}
