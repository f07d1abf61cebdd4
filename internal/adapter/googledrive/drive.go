package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jun/cloudmover/internal/adapter"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	fileFields = "id, name, mimeType, size, createdTime, modifiedTime, parents, webViewLink"
	listFields = "nextPageToken, files(" + fileFields + ")"

	// nativePrefix marks provider-native documents, which report no byte size.
	nativePrefix = "application/vnd.google-apps."
)

// DriveAdapter implements adapter.ObjectClient for Google Drive v3.
type DriveAdapter struct {
	service *drive.Service
}

// NewDriveAdapter creates a DriveAdapter.
// client should already carry the user's OAuth credentials.
func NewDriveAdapter(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*DriveAdapter, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &DriveAdapter{service: srv}, nil
}

// toRemoteError converts Drive failures into adapter.RemoteAPIError.
// Context errors pass through so callers can tell a timeout from a provider failure.
func toRemoteError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" {
			msg = strings.TrimSpace(gErr.Body)
		}
		return &adapter.RemoteAPIError{Status: gErr.Code, Message: msg}
	}
	return &adapter.RemoteAPIError{Status: http.StatusBadGateway, Message: err.Error()}
}

func toMetadata(f *drive.File) adapter.ObjectMetadata {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	m := adapter.ObjectMetadata{
		ID:           f.Id,
		Name:         f.Name,
		MIMEType:     f.MimeType,
		CreatedTime:  created,
		ModifiedTime: modified,
		Parents:      f.Parents,
		WebViewLink:  f.WebViewLink,
	}
	if !strings.HasPrefix(f.MimeType, nativePrefix) {
		size := f.Size
		m.Size = &size
	}
	return m
}

// List returns one page of files matching req.Query.
func (d *DriveAdapter) List(ctx context.Context, req adapter.ListRequest) (*adapter.Page, error) {
	q, err := req.Query.Build()
	if err != nil {
		return nil, err
	}

	call := d.service.Files.List().
		Q(q).
		Fields(googleapi.Field(listFields)).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if req.PageSize > 0 {
		call = call.PageSize(req.PageSize)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}
	if req.OrderBy != "" {
		call = call.OrderBy(req.OrderBy)
	}

	r, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", toRemoteError(err))
	}

	page := &adapter.Page{
		Items:         make([]adapter.ObjectMetadata, 0, len(r.Files)),
		NextPageToken: r.NextPageToken,
	}
	for _, f := range r.Files {
		page.Items = append(page.Items, toMetadata(f))
	}
	return page, nil
}

// GetMetadata fetches one file's metadata.
func (d *DriveAdapter) GetMetadata(ctx context.Context, objectID string) (*adapter.ObjectMetadata, error) {
	f, err := d.service.Files.Get(objectID).
		SupportsAllDrives(true).
		Fields(googleapi.Field(fileFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", objectID, toRemoteError(err))
	}
	m := toMetadata(f)
	return &m, nil
}

// Download streams the file's bytes. The caller closes the reader.
func (d *DriveAdapter) Download(ctx context.Context, objectID string) (io.ReadCloser, error) {
	resp, err := d.service.Files.Get(objectID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectID, toRemoteError(err))
	}
	return resp.Body, nil
}

// Export streams a Google-native document converted to targetMIME.
func (d *DriveAdapter) Export(ctx context.Context, objectID, targetMIME string) (io.ReadCloser, error) {
	resp, err := d.service.Files.Export(objectID, targetMIME).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("export %s as %s: %w", objectID, targetMIME, toRemoteError(err))
	}
	return resp.Body, nil
}

// Upload creates a file with content in one multipart request.
func (d *DriveAdapter) Upload(ctx context.Context, req adapter.UploadRequest) (*adapter.ObjectMetadata, error) {
	f := &drive.File{
		Name:     req.Name,
		MimeType: req.MIMEType,
	}
	if req.ParentID != "" {
		f.Parents = []string{req.ParentID}
	}

	res, err := d.service.Files.Create(f).
		Media(req.Content, googleapi.ContentType(req.MIMEType)).
		SupportsAllDrives(true).
		Fields(googleapi.Field(fileFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", req.Name, toRemoteError(err))
	}
	m := toMetadata(res)
	return &m, nil
}

// Delete permanently deletes a file. A missing file reports false.
func (d *DriveAdapter) Delete(ctx context.Context, objectID string) (bool, error) {
	err := d.service.Files.Delete(objectID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err == nil {
		return true, nil
	}

	remote := toRemoteError(err)
	if errors.Is(remote, adapter.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("delete %s: %w", objectID, remote)
}

// About returns the account's email, display name, and storage quota.
func (d *DriveAdapter) About(ctx context.Context) (*adapter.Account, error) {
	a, err := d.service.About.Get().
		Fields("user(emailAddress, displayName), storageQuota(limit, usage)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("about: %w", toRemoteError(err))
	}

	acct := &adapter.Account{}
	if a.User != nil {
		acct.Email = a.User.EmailAddress
		acct.DisplayName = a.User.DisplayName
	}
	if a.StorageQuota != nil {
		acct.UsageBytes = a.StorageQuota.Usage
		acct.LimitBytes = a.StorageQuota.Limit
	}
	return acct, nil
}
