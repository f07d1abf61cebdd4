package explorer

import (
	"fmt"
	"strings"

	"github.com/jun/cloudmover/internal/adapter"
)

// Category is a coarse grouping of MIME types for display and filtering.
type Category string

const (
	CategoryImage        Category = "image"
	CategoryVideo        Category = "video"
	CategoryAudio        Category = "audio"
	CategoryDocument     Category = "document"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryPresentation Category = "presentation"
	CategoryFolder       Category = "folder"
	CategoryApplication  Category = "application"
	CategoryOther        Category = "other"
	CategoryUnknown      Category = "unknown"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize renders n bytes with binary-prefix units and one decimal.
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

type categoryRule struct {
	category Category
	match    func(mime string) bool
}

func exact(types ...string) func(string) bool {
	return func(m string) bool {
		for _, t := range types {
			if m == t {
				return true
			}
		}
		return false
	}
}

func prefix(p string) func(string) bool {
	return func(m string) bool { return strings.HasPrefix(m, p) }
}

func contains(parts ...string) func(string) bool {
	return func(m string) bool {
		for _, p := range parts {
			if strings.Contains(m, p) {
				return true
			}
		}
		return false
	}
}

// categoryRules is checked in order; the first match wins.
var categoryRules = []categoryRule{
	{CategoryFolder, exact(adapter.FolderMIMEType)},
	{CategorySpreadsheet, exact(
		"application/vnd.google-apps.spreadsheet",
		"application/vnd.ms-excel",
		"text/csv",
	)},
	{CategorySpreadsheet, contains("spreadsheetml", "opendocument.spreadsheet")},
	{CategoryPresentation, exact(
		"application/vnd.google-apps.presentation",
		"application/vnd.ms-powerpoint",
	)},
	{CategoryPresentation, contains("presentationml", "opendocument.presentation")},
	{CategoryDocument, exact(
		"application/vnd.google-apps.document",
		"application/pdf",
		"application/msword",
		"application/rtf",
	)},
	{CategoryDocument, contains("wordprocessingml", "opendocument.text")},
	{CategoryImage, exact("application/vnd.google-apps.drawing")},
	{CategoryImage, prefix("image/")},
	{CategoryVideo, prefix("video/")},
	{CategoryAudio, prefix("audio/")},
	{CategoryDocument, prefix("text/")},
	{CategoryApplication, prefix("application/")},
}

// Categorize maps a MIME type to its Category.
func Categorize(mimeType string) Category {
	if mimeType == "" {
		return CategoryUnknown
	}
	m := strings.ToLower(mimeType)
	for _, r := range categoryRules {
		if r.match(m) {
			return r.category
		}
	}
	return CategoryOther
}

// ParseCategories parses a comma-separated allow-list, ignoring blanks.
func ParseCategories(s string) []Category {
	var out []Category
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, Category(part))
		}
	}
	return out
}
