package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/cloudmover/internal/auth"
	"github.com/jun/cloudmover/internal/model"
	"github.com/jun/cloudmover/internal/session"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles the login flow and logout.
type AuthHandler struct {
	authService *auth.Service
	sessions    *session.Store
	frontendURL string
	devMode     bool
	demoLogin   bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.Service, sessions *session.Store, frontendURL string, devMode bool) *AuthHandler {
	return &AuthHandler{authService: s, sessions: sessions, frontendURL: frontendURL, devMode: devMode, demoLogin: devMode}
}

// WithDemoLogin turns the demo login endpoint on or off. It is on in dev mode.
func (h *AuthHandler) WithDemoLogin(enabled bool) *AuthHandler {
	h.demoLogin = enabled
	return h
}

// Login redirects to Google consent for the requested role.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	role, err := model.ParseRole(req.QueryStringParameters["role"])
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": h.authService.AuthURL(role)},
	}, nil
}

// callbackURL rebuilds the authorization response URL from the request.
func (h *AuthHandler) callbackURL(req events.APIGatewayProxyRequest) string {
	q := url.Values{}
	for k, v := range req.QueryStringParameters {
		q.Set(k, v)
	}
	return h.authService.Config().RedirectURL + "?" + q.Encode()
}

// Callback completes login and sends the browser back to the frontend with
// the new session token.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	role, err := model.ParseRole(req.QueryStringParameters["state"])
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	res, err := h.authService.Login(ctx, h.callbackURL(req), role)
	if err != nil {
		return errorFor("auth callback", err), nil
	}

	return h.redirectWithSession(res.SessionToken, role, res.Identity.Email), nil
}

func (h *AuthHandler) redirectWithSession(token string, role model.Role, email string) events.APIGatewayProxyResponse {
	q := url.Values{}
	q.Set("token", token)
	q.Set("role", string(role))
	q.Set("email", email)

	sameSite := "None"
	if h.devMode {
		sameSite = "Lax"
	}
	cookie := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure",
		sessionCookie, token, int(h.sessions.TTL().Seconds()), sameSite)

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.frontendURL + "/?" + q.Encode(),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie},
		},
	}
}

// DemoLogin signs in to a seeded in-memory drive without Google.
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !h.demoLogin {
		return errorResponse(http.StatusNotFound, "Not Found"), nil
	}
	role, err := model.ParseRole(req.QueryStringParameters["role"])
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	bundle := model.CredentialBundle{
		AccessToken: "demo-" + string(role),
		ClientID:    "demo",
		Scopes:      auth.Scopes,
	}
	token, err := h.sessions.Store(ctx, bundle, role)
	if err != nil {
		return errorFor("demo login", err), nil
	}

	log.Info().Str("role", string(role)).Msg("demo login")
	return h.redirectWithSession(token, role, "demo-"+string(role)+"@demo.local"), nil
}

// Logout revokes the caller's session.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	token := SessionToken(req)
	if token == "" {
		return errorResponse(http.StatusBadRequest, "missing session token"), nil
	}

	revoked, err := h.sessions.Revoke(ctx, token)
	if err != nil {
		return errorFor("logout", err), nil
	}

	sameSite := "None"
	if h.devMode {
		sameSite = "Lax"
	}
	resp := jsonResponse(http.StatusOK, map[string]bool{"success": revoked})
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {fmt.Sprintf("%s=; HttpOnly; Path=/; Max-Age=0; SameSite=%s; Secure", sessionCookie, sameSite)},
	}
	return resp, nil
}
