package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jun/cloudmover/internal/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested at login: full Drive access plus identity.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// NewOAuthConfig builds the Google OAuth2 client configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// SessionStore persists a logged-in bundle under a new session token.
type SessionStore interface {
	Store(ctx context.Context, bundle model.CredentialBundle, role model.Role) (string, error)
}

// IdentityVerifier checks an ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken, clientID string) (*model.Identity, error)
}

// Service runs the login flow: code exchange, identity check, session creation.
type Service struct {
	oauthConfig *oauth2.Config
	verifier    IdentityVerifier
	sessions    SessionStore

	// userInfoOpts are extra options for the userinfo fallback client.
	userInfoOpts []option.ClientOption
}

// NewService creates a Service.
func NewService(cfg *oauth2.Config, verifier IdentityVerifier, sessions SessionStore) *Service {
	return &Service{oauthConfig: cfg, verifier: verifier, sessions: sessions}
}

// Config returns the OAuth2 config.
func (s *Service) Config() *oauth2.Config {
	return s.oauthConfig
}

// AuthURL returns the consent URL. The role travels in the state parameter
// and comes back on the callback.
func (s *Service) AuthURL(role model.Role) string {
	return s.oauthConfig.AuthCodeURL(string(role), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the code in the authorization response URL for tokens.
func (s *Service) Exchange(ctx context.Context, authorizationResponseURL string) (*oauth2.Token, error) {
	u, err := url.Parse(authorizationResponseURL)
	if err != nil {
		return nil, fmt.Errorf("parse authorization response: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return nil, &ConsentError{Code: e, Description: q.Get("error_description")}
	}
	code := q.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// BundleFromToken copies an OAuth2 token and the client config into a bundle.
func BundleFromToken(cfg *oauth2.Config, tok *oauth2.Token) model.CredentialBundle {
	b := model.CredentialBundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       append([]string(nil), cfg.Scopes...),
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		b.IDToken = idToken
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		b.Expiry = &exp
	}
	return b
}

// LoginResult is what the callback hands back to the frontend.
type LoginResult struct {
	SessionToken string
	Role         model.Role
	Identity     *model.Identity
}

// Login completes the authorization flow for role and stores the session.
func (s *Service) Login(ctx context.Context, authorizationResponseURL string, role model.Role) (*LoginResult, error) {
	tok, err := s.Exchange(ctx, authorizationResponseURL)
	if err != nil {
		return nil, err
	}
	bundle := BundleFromToken(s.oauthConfig, tok)

	identity, err := s.identify(ctx, tok, bundle.IDToken)
	if err != nil {
		return nil, err
	}

	sessionToken, err := s.sessions.Store(ctx, bundle, role)
	if err != nil {
		return nil, err
	}

	log.Info().Str("role", string(role)).Str("email", identity.Email).Msg("login complete")
	return &LoginResult{SessionToken: sessionToken, Role: role, Identity: identity}, nil
}

// identify verifies the ID token, or asks the userinfo endpoint when the
// token response had none.
func (s *Service) identify(ctx context.Context, tok *oauth2.Token, idToken string) (*model.Identity, error) {
	if idToken != "" {
		return s.verifier.Verify(ctx, idToken, s.oauthConfig.ClientID)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(s.oauthConfig.TokenSource(ctx, tok)),
	}, s.userInfoOpts...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	return &model.Identity{Subject: info.Id, Email: info.Email, Name: info.Name}, nil
}

// HTTPClient returns a client that authorizes requests as the bundle's
// identity and refreshes the access token when it lapses.
func HTTPClient(ctx context.Context, bundle *model.CredentialBundle) *http.Client {
	tokenURL := bundle.TokenURI
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	cfg := &oauth2.Config{
		ClientID:     bundle.ClientID,
		ClientSecret: bundle.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       bundle.Scopes,
	}

	tok := &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		TokenType:    "Bearer",
	}
	if bundle.Expiry != nil {
		tok.Expiry = *bundle.Expiry
	} else if bundle.RefreshToken != "" {
		// Unknown expiry: assume the access token lasts its usual hour from login.
		tok.Expiry = bundle.CreatedAt.Add(time.Hour)
	}
	return oauth2.NewClient(ctx, cfg.TokenSource(ctx, tok))
}
