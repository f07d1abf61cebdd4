package explorer

import (
	"context"
	"fmt"
	"testing"

	"github.com/jun/cloudmover/internal/adapter/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newListDrive() *memory.Drive {
	d := memory.NewDrive("a@example.com", memory.Limits{})
	d.AddFolder("Photos", memory.RootID)
	d.AddFile("b.txt", "text/plain", memory.RootID, make([]byte, 1536))
	d.AddFile("a.png", "image/png", memory.RootID, make([]byte, 10))
	return d
}

func TestListFolder_FoldersFirstWithSummary(t *testing.T) {
	d := newListDrive()

	l, err := ListFolder(context.Background(), d, ListOptions{IncludeFolders: true, IncludeFiles: true})
	require.NoError(t, err)

	require.Len(t, l.Items, 3)
	assert.Equal(t, "Photos", l.Items[0].Name)
	assert.True(t, l.Items[0].IsFolder)
	assert.Empty(t, l.Items[0].SizeFormatted)
	assert.Equal(t, "a.png", l.Items[1].Name)
	assert.Equal(t, CategoryImage, l.Items[1].Category)
	assert.Equal(t, "1.5 KB", l.Items[2].SizeFormatted)

	assert.Equal(t, Summary{TotalFiles: 2, TotalFolders: 1, TotalItemsInPage: 3}, l.Summary)
	require.NotNil(t, l.FolderInfo)
	assert.Equal(t, "My Drive", l.FolderInfo.Name)
	assert.False(t, l.HasMorePages)
}

func TestListFolder_Filters(t *testing.T) {
	d := newListDrive()
	ctx := context.Background()

	files, err := ListFolder(ctx, d, ListOptions{IncludeFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 0, files.Summary.TotalFolders)
	assert.Equal(t, 2, files.Summary.TotalFiles)

	folders, err := ListFolders(ctx, d, "", "", 0, "")
	require.NoError(t, err)
	require.Len(t, folders.Items, 1)
	assert.Equal(t, "Photos", folders.Items[0].Name)

	search, err := ListFolder(ctx, d, ListOptions{IncludeFiles: true, IncludeFolders: true, Search: "B.T"})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, "b.txt", search.Items[0].Name)
}

func TestListFolder_Pagination(t *testing.T) {
	d := memory.NewDrive("a@example.com", memory.Limits{})
	for i := 0; i < 5; i++ {
		d.AddFile(fmt.Sprintf("f%d", i), "text/plain", memory.RootID, nil)
	}
	ctx := context.Background()

	first, err := ListFolder(ctx, d, ListOptions{PageSize: 2, IncludeFiles: true})
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.True(t, first.HasMorePages)

	var names []string
	token := first.NextPageToken
	for token != "" {
		next, err := ListFolder(ctx, d, ListOptions{PageSize: 2, PageToken: token, IncludeFiles: true})
		require.NoError(t, err)
		for _, it := range next.Items {
			names = append(names, it.Name)
		}
		token = next.NextPageToken
	}
	assert.Equal(t, []string{"f2", "f3", "f4"}, names)
}

func TestListFolder_NotAFolder(t *testing.T) {
	d := newListDrive()
	id := d.AddFile("x.txt", "text/plain", memory.RootID, nil)

	_, err := ListFolder(context.Background(), d, ListOptions{FolderID: id, IncludeFiles: true})
	assert.ErrorIs(t, err, ErrNotAFolder)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampPageSize(0))
	assert.Equal(t, 1, ClampPageSize(1))
	assert.Equal(t, MaxPageSize, ClampPageSize(5000))
}

func TestNormalizeOrder(t *testing.T) {
	assert.Equal(t, orderByName, normalizeOrder(""))
	assert.Equal(t, orderByName, normalizeOrder("size; drop"))
	assert.Equal(t, orderByModified, normalizeOrder("modifiedTime desc"))
}
