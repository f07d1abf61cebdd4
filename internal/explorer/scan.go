package explorer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/rs/zerolog/log"
)

const (
	MaxScanDepth = 10

	// scanPageSize is the single-page cap per folder. Larger folders are
	// truncated and the result is marked so.
	scanPageSize = 1000

	DefaultMaxCalls    = 500
	DefaultScanTimeout = 2 * time.Minute
)

// ScanOptions controls a recursive scan.
type ScanOptions struct {
	RootID     string
	MaxDepth   int
	FilesOnly  bool
	Categories []Category

	// MaxCalls bounds the number of listing calls. Zero selects DefaultMaxCalls.
	MaxCalls int
	// Timeout bounds the whole scan. Zero selects DefaultScanTimeout.
	Timeout time.Duration
}

// ScannedFile is a file found by a scan with its path from the scan root.
type ScannedFile struct {
	Item
	Path     string `json:"path"`
	Depth    int    `json:"depth"`
	FolderID string `json:"folderId"`
}

// FolderSummary describes one visited folder.
type FolderSummary struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Path           string        `json:"path"`
	Depth          int           `json:"depth"`
	Files          []ScannedFile `json:"files"`
	Subfolders     []FolderRef   `json:"subfolders"`
	FileCount      int           `json:"fileCount"`
	SubfolderCount int           `json:"subfolderCount"`
}

// ScanResult is the outcome of a recursive scan.
type ScanResult struct {
	Root          FolderRef       `json:"root"`
	MaxDepth      int             `json:"maxDepth"`
	Files         []ScannedFile   `json:"files"`
	Folders       []FolderSummary `json:"folders,omitempty"`
	TotalFiles    int             `json:"totalFiles"`
	TotalFolders  int             `json:"totalFolders"`
	Calls         int             `json:"apiCalls"`
	Truncated     bool            `json:"truncated"`
	FailedFolders []string        `json:"failedFolders,omitempty"`
}

// scanState is threaded through the recursion; nothing else is mutated.
type scanState struct {
	client   adapter.ObjectClient
	opts     ScanOptions
	allow    map[Category]bool
	maxCalls int
	result   *ScanResult
}

// ClampDepth bounds d to 1..MaxScanDepth.
func ClampDepth(d int) int {
	return min(max(d, 1), MaxScanDepth)
}

// Scan walks the tree under opts.RootID depth-first. The root is depth 1 and
// a folder's children are listed only while its depth is below MaxDepth.
// A failed listing below the root skips that subtree; running out of calls
// or time stops descent and marks the result truncated.
func Scan(ctx context.Context, client adapter.ObjectClient, opts ScanOptions) (*ScanResult, error) {
	if opts.RootID == "" {
		opts.RootID = RootFolderID
	}
	opts.MaxDepth = ClampDepth(opts.MaxDepth)
	if opts.MaxCalls <= 0 {
		opts.MaxCalls = DefaultMaxCalls
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultScanTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	root, err := client.GetMetadata(ctx, opts.RootID)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", opts.RootID, err)
	}
	if !root.IsFolder() {
		return nil, fmt.Errorf("scan root %s: %w", opts.RootID, ErrNotAFolder)
	}

	st := &scanState{
		client:   client,
		opts:     opts,
		maxCalls: opts.MaxCalls,
		result: &ScanResult{
			Root:     FolderRef{ID: root.ID, Name: root.Name},
			MaxDepth: opts.MaxDepth,
			Files:    []ScannedFile{},
		},
	}
	if len(opts.Categories) > 0 {
		st.allow = make(map[Category]bool, len(opts.Categories))
		for _, c := range opts.Categories {
			st.allow[c] = true
		}
	}

	if err := st.visit(ctx, FolderRef{ID: root.ID, Name: root.Name}, "", 1); err != nil {
		return nil, err
	}

	res := st.result
	slices.SortStableFunc(res.Files, func(a, b ScannedFile) int {
		return strings.Compare(strings.ToLower(a.Path), strings.ToLower(b.Path))
	})
	res.TotalFiles = len(res.Files)
	return res, nil
}

// visit lists one folder and recurses. Only a root failure is returned.
func (st *scanState) visit(ctx context.Context, folder FolderRef, path string, depth int) error {
	if st.result.Calls >= st.maxCalls || ctx.Err() != nil {
		st.result.Truncated = true
		return nil
	}

	st.result.Calls++
	page, err := st.client.List(ctx, adapter.ListRequest{
		Query:    adapter.NewQuery().InFolder(folder.ID),
		PageSize: scanPageSize,
		OrderBy:  orderByName,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			st.result.Truncated = true
			return nil
		}
		if depth == 1 {
			return fmt.Errorf("list folder %s: %w", folder.ID, err)
		}
		log.Warn().Err(err).
			Str("folder_id", folder.ID).
			Str("path", path).
			Int("depth", depth).
			Msg("scan: listing failed, skipping subtree")
		st.result.FailedFolders = append(st.result.FailedFolders, folder.ID)
		return nil
	}
	st.result.TotalFolders++
	if page.NextPageToken != "" {
		st.result.Truncated = true
	}

	summary := FolderSummary{
		ID:         folder.ID,
		Name:       folder.Name,
		Path:       path,
		Depth:      depth,
		Files:      []ScannedFile{},
		Subfolders: []FolderRef{},
	}

	var subfolders []FolderRef
	for _, m := range page.Items {
		if m.IsFolder() {
			subfolders = append(subfolders, FolderRef{ID: m.ID, Name: m.Name})
			continue
		}
		it := annotate(m)
		if st.allow != nil && !st.allow[it.Category] {
			continue
		}
		f := ScannedFile{
			Item:     it,
			Path:     joinPath(path, m.Name),
			Depth:    depth,
			FolderID: folder.ID,
		}
		st.result.Files = append(st.result.Files, f)
		summary.Files = append(summary.Files, f)
	}
	summary.Subfolders = append(summary.Subfolders, subfolders...)
	summary.FileCount = len(summary.Files)
	summary.SubfolderCount = len(subfolders)

	if !st.opts.FilesOnly {
		st.result.Folders = append(st.result.Folders, summary)
	}

	if depth >= st.opts.MaxDepth {
		return nil
	}
	for _, sub := range subfolders {
		if err := st.visit(ctx, sub, joinPath(path, sub.Name), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
