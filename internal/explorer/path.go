package explorer

import (
	"context"
	"fmt"
	"slices"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/rs/zerolog/log"
)

// maxPathHops guards against parent cycles.
const maxPathHops = 64

// FolderPath returns the breadcrumb from the top-most reachable ancestor down
// to folderID, following each folder's first parent. Only the target itself
// must resolve; an ancestor that fails to resolve or is not a folder ends
// the walk with the partial path.
func FolderPath(ctx context.Context, client adapter.ObjectClient, folderID string) ([]FolderRef, error) {
	m, err := client.GetMetadata(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("folder path %s: %w", folderID, err)
	}
	if !m.IsFolder() {
		return nil, fmt.Errorf("folder path %s: %w", folderID, ErrNotAFolder)
	}

	path := []FolderRef{{ID: m.ID, Name: m.Name}}
	seen := map[string]bool{m.ID: true}

	for parentID := m.ParentID(); parentID != "" && len(path) < maxPathHops; {
		if seen[parentID] {
			break
		}
		seen[parentID] = true

		p, err := client.GetMetadata(ctx, parentID)
		if err != nil {
			log.Debug().Err(err).Str("folder_id", parentID).Msg("folder path: ancestor unavailable")
			break
		}
		if !p.IsFolder() {
			break
		}
		path = append(path, FolderRef{ID: p.ID, Name: p.Name})
		parentID = p.ParentID()
	}

	slices.Reverse(path)
	return path, nil
}
