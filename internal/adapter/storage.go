package adapter

import (
	"context"
	"io"
	"time"
)

// FolderMIMEType is the MIME type Google Drive uses for folders.
const FolderMIMEType = "application/vnd.google-apps.folder"

// ObjectMetadata is a read-only projection of one remote object.
type ObjectMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MIMEType     string    `json:"mimeType"`
	Size         *int64    `json:"size,omitempty"`
	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Parents      []string  `json:"parents,omitempty"`
	WebViewLink  string    `json:"webViewLink,omitempty"`
}

// IsFolder reports whether the object is a folder.
func (m *ObjectMetadata) IsFolder() bool {
	return m.MIMEType == FolderMIMEType
}

// ParentID returns the canonical (first) parent, or "" for a root.
func (m *ObjectMetadata) ParentID() string {
	if len(m.Parents) == 0 {
		return ""
	}
	return m.Parents[0]
}

// ListRequest is a single page request against the provider.
type ListRequest struct {
	Query     Query
	PageToken string
	PageSize  int64
	OrderBy   string
}

// Page is one page of listing results.
type Page struct {
	Items         []ObjectMetadata
	NextPageToken string
}

// UploadRequest describes a new object to create.
type UploadRequest struct {
	Name     string
	MIMEType string
	ParentID string // empty means the account root
	Content  io.Reader
}

// Account describes the identity and quota behind a client.
type Account struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	UsageBytes  int64  `json:"usageBytes"`
	LimitBytes  int64  `json:"limitBytes,omitempty"` // zero when unlimited
}

// ObjectClient is the remote object API bound to one credential bundle.
// Errors from the provider are returned as *RemoteAPIError and are never
// retried here.
type ObjectClient interface {
	// List returns one page of objects matching the query.
	List(ctx context.Context, req ListRequest) (*Page, error)

	// GetMetadata fetches metadata for a single object.
	GetMetadata(ctx context.Context, objectID string) (*ObjectMetadata, error)

	// Download streams the original bytes of a binary object.
	Download(ctx context.Context, objectID string) (io.ReadCloser, error)

	// Export streams a provider-native document converted to targetMIME.
	Export(ctx context.Context, objectID, targetMIME string) (io.ReadCloser, error)

	// Upload creates a new object in a single call.
	Upload(ctx context.Context, req UploadRequest) (*ObjectMetadata, error)

	// Delete permanently removes an object and reports whether it existed.
	Delete(ctx context.Context, objectID string) (bool, error)

	// About returns the account behind the client.
	About(ctx context.Context) (*Account, error)
}
