package explorer

import "github.com/jun/cloudmover/internal/adapter"

// Item is object metadata annotated for display.
type Item struct {
	adapter.ObjectMetadata
	IsFolder      bool     `json:"isFolder"`
	SizeFormatted string   `json:"sizeFormatted,omitempty"`
	Category      Category `json:"category"`
}

func annotate(m adapter.ObjectMetadata) Item {
	it := Item{
		ObjectMetadata: m,
		IsFolder:       m.IsFolder(),
		Category:       Categorize(m.MIMEType),
	}
	if m.Size != nil && !it.IsFolder {
		it.SizeFormatted = FormatFileSize(*m.Size)
	}
	return it
}

// FolderRef identifies a folder by id and name.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
