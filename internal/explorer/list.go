package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/rs/zerolog/log"
)

// RootFolderID is the provider alias for the account's top folder.
const RootFolderID = "root"

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000

	orderByName     = "folder,name"
	orderByModified = "modifiedTime desc"
)

// ListOptions controls a flat folder listing.
type ListOptions struct {
	FolderID       string
	PageSize       int
	PageToken      string
	OrderBy        string
	IncludeFolders bool
	IncludeFiles   bool
	Search         string
}

// Summary counts the items of one page.
type Summary struct {
	TotalFiles       int `json:"totalFiles"`
	TotalFolders     int `json:"totalFolders"`
	TotalItemsInPage int `json:"totalItemsInPage"`
}

// Listing is one page of a folder's children.
type Listing struct {
	Items         []Item     `json:"items"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	HasMorePages  bool       `json:"hasMorePages"`
	FolderInfo    *FolderRef `json:"folderInfo,omitempty"`
	Summary       Summary    `json:"summary"`
}

// ClampPageSize bounds n to 1..MaxPageSize; zero or less selects the default.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

// normalizeOrder accepts "name" or a modified-time key and falls back to name.
func normalizeOrder(s string) string {
	switch s {
	case "modifiedTime", "modifiedTime desc", "modified":
		return orderByModified
	}
	return orderByName
}

// ListFolder returns one page of the folder's children.
func ListFolder(ctx context.Context, client adapter.ObjectClient, opts ListOptions) (*Listing, error) {
	folderID := opts.FolderID
	if folderID == "" {
		folderID = RootFolderID
	}

	q := adapter.NewQuery().InFolder(folderID)
	if opts.Search != "" {
		q = q.NameOrContentContains(opts.Search)
	}
	switch {
	case opts.IncludeFolders && !opts.IncludeFiles:
		q = q.FoldersOnly()
	case opts.IncludeFiles && !opts.IncludeFolders:
		q = q.ExcludeFolders()
	}

	info, err := folderInfo(ctx, client, folderID)
	if err != nil {
		return nil, err
	}

	page, err := client.List(ctx, adapter.ListRequest{
		Query:     q,
		PageToken: opts.PageToken,
		PageSize:  int64(ClampPageSize(opts.PageSize)),
		OrderBy:   normalizeOrder(opts.OrderBy),
	})
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}

	out := &Listing{
		Items:         make([]Item, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
		HasMorePages:  page.NextPageToken != "",
		FolderInfo:    info,
	}
	for _, m := range page.Items {
		it := annotate(m)
		if it.IsFolder {
			out.Summary.TotalFolders++
		} else {
			out.Summary.TotalFiles++
		}
		out.Items = append(out.Items, it)
	}
	out.Summary.TotalItemsInPage = len(out.Items)
	return out, nil
}

// ListFolders returns one page of subfolders, optionally filtered by name.
func ListFolders(ctx context.Context, client adapter.ObjectClient, parentID, search string, pageSize int, pageToken string) (*Listing, error) {
	return ListFolder(ctx, client, ListOptions{
		FolderID:       parentID,
		PageSize:       pageSize,
		PageToken:      pageToken,
		IncludeFolders: true,
		Search:         search,
	})
}

// folderInfo fetches the listed folder's name. A target that is not a folder
// is an error; any other lookup failure only drops the info.
func folderInfo(ctx context.Context, client adapter.ObjectClient, folderID string) (*FolderRef, error) {
	m, err := client.GetMetadata(ctx, folderID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn().Err(err).Str("folder_id", folderID).Msg("folder info unavailable")
		return nil, nil
	}
	if !m.IsFolder() {
		return nil, fmt.Errorf("%s: %w", folderID, ErrNotAFolder)
	}
	return &FolderRef{ID: m.ID, Name: m.Name}, nil
}
