package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/cloudmover/internal/session"
)

// SessionHandler reports on stored sessions.
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Validate reports whether the caller's token still resolves.
func (h *SessionHandler) Validate(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	token := SessionToken(req)
	if token == "" {
		return jsonResponse(http.StatusOK, map[string]any{"valid": false}), nil
	}

	bundle, err := h.sessions.Resolve(ctx, token)
	if errors.Is(err, session.ErrSessionNotFound) {
		return jsonResponse(http.StatusOK, map[string]any{"valid": false}), nil
	}
	if err != nil {
		return errorFor("validate session", err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"valid":        true,
		"session_type": bundle.Role,
	}), nil
}

// Roles lists the current session token for each role.
func (h *SessionHandler) Roles(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	roles, err := h.sessions.ListRoles(ctx)
	if err != nil {
		return errorFor("list roles", err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"sessions": roles}), nil
}
