package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/explorer"
	"github.com/jun/cloudmover/internal/session"
)

// ScanLimits bounds every recursive scan.
type ScanLimits struct {
	MaxCalls int
	Timeout  time.Duration
}

// BrowseHandler serves read-only drive views for one session.
type BrowseHandler struct {
	sessions *session.Store
	provider adapter.Provider
	limits   ScanLimits
}

// NewBrowseHandler creates a new BrowseHandler.
func NewBrowseHandler(sessions *session.Store, provider adapter.Provider, limits ScanLimits) *BrowseHandler {
	return &BrowseHandler{sessions: sessions, provider: provider, limits: limits}
}

// client resolves the caller's session and builds a drive client for it.
func (h *BrowseHandler) client(ctx context.Context, req events.APIGatewayProxyRequest) (adapter.ObjectClient, error) {
	bundle, err := h.sessions.Resolve(ctx, SessionToken(req))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, &session.SessionError{Err: err}
		}
		return nil, err
	}
	return h.provider.ClientFor(ctx, bundle)
}

// DriveInfo returns the account and storage quota.
func (h *BrowseHandler) DriveInfo(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	c, err := h.client(ctx, req)
	if err != nil {
		return errorFor("drive info", err), nil
	}
	acct, err := c.About(ctx)
	if err != nil {
		return errorFor("drive info", err), nil
	}

	info := map[string]any{
		"email":        acct.Email,
		"displayName":  acct.DisplayName,
		"usage":        acct.UsageBytes,
		"usageDisplay": explorer.FormatFileSize(acct.UsageBytes),
	}
	if acct.LimitBytes > 0 {
		info["limit"] = acct.LimitBytes
		info["limitDisplay"] = explorer.FormatFileSize(acct.LimitBytes)
	}
	return jsonResponse(http.StatusOK, info), nil
}

// ListFolderContents returns one page of a folder's children.
func (h *BrowseHandler) ListFolderContents(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	q := req.QueryStringParameters
	opts := explorer.ListOptions{
		FolderID:  q["folder_id"],
		PageToken: q["page_token"],
		OrderBy:   q["order_by"],
		Search:    q["search_query"],
	}
	var err error
	if opts.PageSize, err = queryInt(req, "page_size", explorer.DefaultPageSize); err != nil {
		return errorFor("list folder contents", err), nil
	}
	if opts.IncludeFolders, err = queryBool(req, "include_folders", true); err != nil {
		return errorFor("list folder contents", err), nil
	}
	if opts.IncludeFiles, err = queryBool(req, "include_files", true); err != nil {
		return errorFor("list folder contents", err), nil
	}

	c, err := h.client(ctx, req)
	if err != nil {
		return errorFor("list folder contents", err), nil
	}
	listing, err := explorer.ListFolder(ctx, c, opts)
	if err != nil {
		return errorFor("list folder contents", err), nil
	}
	return jsonResponse(http.StatusOK, listing), nil
}

// ListFolders returns subfolders for the destination picker.
func (h *BrowseHandler) ListFolders(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	q := req.QueryStringParameters
	pageSize, err := queryInt(req, "page_size", explorer.DefaultPageSize)
	if err != nil {
		return errorFor("list folders", err), nil
	}

	c, err := h.client(ctx, req)
	if err != nil {
		return errorFor("list folders", err), nil
	}
	listing, err := explorer.ListFolders(ctx, c, q["parent_id"], q["search_query"], pageSize, q["page_token"])
	if err != nil {
		return errorFor("list folders", err), nil
	}
	return jsonResponse(http.StatusOK, listing), nil
}

// ScanFolder walks a folder tree to a bounded depth.
func (h *BrowseHandler) ScanFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	q := req.QueryStringParameters
	opts := explorer.ScanOptions{
		RootID:     q["folder_id"],
		Categories: explorer.ParseCategories(q["categories"]),
		MaxCalls:   h.limits.MaxCalls,
		Timeout:    h.limits.Timeout,
	}
	var err error
	if opts.MaxDepth, err = queryInt(req, "max_depth", 3); err != nil {
		return errorFor("scan folder", err), nil
	}
	if opts.FilesOnly, err = queryBool(req, "files_only", false); err != nil {
		return errorFor("scan folder", err), nil
	}

	c, err := h.client(ctx, req)
	if err != nil {
		return errorFor("scan folder", err), nil
	}
	res, err := explorer.Scan(ctx, c, opts)
	if err != nil {
		return errorFor("scan folder", err), nil
	}
	return jsonResponse(http.StatusOK, res), nil
}

// FolderPath returns the breadcrumb for a folder.
func (h *BrowseHandler) FolderPath(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	folderID := req.QueryStringParameters["folder_id"]
	if folderID == "" {
		folderID = explorer.RootFolderID
	}

	c, err := h.client(ctx, req)
	if err != nil {
		return errorFor("folder path", err), nil
	}
	path, err := explorer.FolderPath(ctx, c, folderID)
	if err != nil {
		return errorFor("folder path", err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"path": path}), nil
}
