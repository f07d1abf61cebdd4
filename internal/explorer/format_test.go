package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1, "1.0 B"},
		{512, "512.0 B"},
		{1023, "1023.0 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1073741824, "1.0 GB"},
		{3 << 40, "3.0 TB"},
		{2048 << 40, "2048.0 TB"},
		{-5, "0 B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.in), "FormatFileSize(%d)", tt.in)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		mime string
		want Category
	}{
		{"application/vnd.google-apps.folder", CategoryFolder},
		{"image/png", CategoryImage},
		{"", CategoryUnknown},
		{"IMAGE/JPEG", CategoryImage},
		{"video/mp4", CategoryVideo},
		{"audio/mpeg", CategoryAudio},
		{"application/pdf", CategoryDocument},
		{"application/vnd.google-apps.document", CategoryDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", CategoryDocument},
		{"text/plain", CategoryDocument},
		{"text/csv", CategorySpreadsheet},
		{"application/vnd.google-apps.spreadsheet", CategorySpreadsheet},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", CategorySpreadsheet},
		{"application/vnd.google-apps.presentation", CategoryPresentation},
		{"application/vnd.ms-powerpoint", CategoryPresentation},
		{"application/vnd.google-apps.drawing", CategoryImage},
		{"application/zip", CategoryApplication},
		{"font/woff2", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.mime))
		})
	}
}

func TestParseCategories(t *testing.T) {
	assert.Equal(t, []Category{CategoryImage, CategoryVideo}, ParseCategories(" Image, ,video"))
	assert.Nil(t, ParseCategories(""))
}
