package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/auth"
	"github.com/jun/cloudmover/internal/explorer"
	"github.com/jun/cloudmover/internal/session"
	"github.com/rs/zerolog/log"
)

const sessionCookie = "session_token"

// Header does a case-insensitive header lookup.
func Header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// SessionToken finds the caller's session token in the "token" query
// parameter, a Bearer Authorization header, or the session cookie.
func SessionToken(req events.APIGatewayProxyRequest) string {
	if t := req.QueryStringParameters["token"]; t != "" {
		return t
	}
	if h := Header(req, "Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	for _, part := range strings.Split(Header(req, "Cookie"), ";") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), sessionCookie+"="); ok {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal response")
		return errorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	return jsonResponse(status, map[string]string{"error": msg})
}

// StatusFor maps an error to the HTTP status reported to the caller.
func StatusFor(err error) int {
	var (
		sessErr   *session.SessionError
		verifyErr *auth.VerificationError
		consent   *auth.ConsentError
		remote    *adapter.RemoteAPIError
		param     *paramError
	)
	switch {
	case errors.As(err, &sessErr), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &verifyErr), errors.As(err, &consent), errors.Is(err, auth.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrNotAFolder), errors.Is(err, adapter.ErrInvalidQuery), errors.As(err, &param):
		return http.StatusBadRequest
	case errors.As(err, &remote):
		if remote.Status >= 400 && remote.Status < 600 {
			return remote.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorFor logs err and renders it. Internal details stay out of 5xx bodies
// except provider errors, which are passed through verbatim.
func errorFor(op string, err error) events.APIGatewayProxyResponse {
	status := StatusFor(err)
	msg := err.Error()

	var remote *adapter.RemoteAPIError
	switch {
	case status == http.StatusServiceUnavailable:
		msg = session.ErrStorageUnavailable.Error()
	case status >= 500 && !errors.As(err, &remote):
		msg = "Internal Server Error"
	}

	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("request failed")
	return errorResponse(status, msg)
}

func queryInt(req events.APIGatewayProxyRequest, key string, def int) (int, error) {
	s := req.QueryStringParameters[key]
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badParam(key, s)
	}
	return n, nil
}

func queryBool(req events.APIGatewayProxyRequest, key string, def bool) (bool, error) {
	s := req.QueryStringParameters[key]
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, badParam(key, s)
	}
	return b, nil
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid value for " + e.key + ": " + strconv.Quote(e.value)
}

func badParam(key, value string) error {
	return &paramError{key: key, value: value}
}
