package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/jun/cloudmover/internal/handler"
)

type handlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

type route struct {
	method string
	path   string
}

func (app *App) routeTable() map[route]handlerFunc {
	return map[route]handlerFunc{
		{http.MethodGet, "/auth/login"}:      app.authHandler.Login,
		{http.MethodGet, "/auth/callback"}:   app.authHandler.Callback,
		{http.MethodGet, "/auth/demo-login"}: app.authHandler.DemoLogin,
		{http.MethodPost, "/auth/logout"}:    app.authHandler.Logout,

		{http.MethodGet, "/session/validate"}: app.sessionHandler.Validate,
		{http.MethodGet, "/session/roles"}:    app.sessionHandler.Roles,

		{http.MethodGet, "/drive-info"}:           app.browseHandler.DriveInfo,
		{http.MethodGet, "/list-folder-contents"}: app.browseHandler.ListFolderContents,
		{http.MethodGet, "/list-folders"}:         app.browseHandler.ListFolders,
		{http.MethodGet, "/scan-folder"}:          app.browseHandler.ScanFolder,
		{http.MethodGet, "/folder-path"}:          app.browseHandler.FolderPath,

		{http.MethodPost, "/transfer-file"}: app.transferHandler.TransferFile,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	method := req.HTTPMethod
	// CloudFront forwards /api/*
	path := strings.TrimPrefix(req.Path, "/api")
	if path == "" {
		path = "/"
	}

	// CORS preflight
	if method == http.MethodOptions {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}), nil
	}

	if !app.originAllowed(req) {
		log.Warn().Str("method", method).Str("path", path).Msg("blocked request without valid X-Origin-Verify")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusForbidden,
			Body:       "Forbidden: Access denied",
		}, nil
	}

	h, ok := app.routes[route{method, path}]
	if !ok {
		return app.corsResponse(events.APIGatewayProxyResponse{
			StatusCode: http.StatusNotFound,
			Body:       fmt.Sprintf("Not Found: %s %s", method, path),
		}), nil
	}

	resp := must(h(ctx, req))
	log.Info().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return app.corsResponse(resp), nil
}

// originAllowed checks the shared secret the CDN adds. Dev mode and an
// unset secret skip the check.
func (app *App) originAllowed(req events.APIGatewayProxyRequest) bool {
	if app.cfg.DevMode || app.apiGatewaySecret == "" {
		return true
	}
	return handler.Header(req, "X-Origin-Verify") == app.apiGatewaySecret
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.cfg.FrontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, turning a returned error into a 500.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		log.Error().Err(err).Msg("handler error")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
