package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrive_UploadAndList(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})

	created, err := d.Upload(ctx, adapter.UploadRequest{
		Name:     "note.txt",
		MIMEType: "text/plain",
		ParentID: RootID,
		Content:  strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Size)
	assert.Equal(t, int64(5), *created.Size)

	page, err := d.List(ctx, adapter.ListRequest{Query: adapter.NewQuery().InFolder(RootID)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.ID, page.Items[0].ID)

	assert.Equal(t, []Call{{OpUpload, "note.txt"}, {OpList, RootID}}, d.Calls())
}

func TestDrive_ListPaginatesAndOrders(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})
	d.AddFile("b.txt", "text/plain", RootID, nil)
	d.AddFile("C.txt", "text/plain", RootID, nil)
	d.AddFolder("z-folder", RootID)
	d.AddFile("a.txt", "text/plain", RootID, nil)

	req := adapter.ListRequest{Query: adapter.NewQuery().InFolder(RootID), PageSize: 3, OrderBy: "folder,name"}
	first, err := d.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.Equal(t, "z-folder", first.Items[0].Name)
	assert.Equal(t, "a.txt", first.Items[1].Name)
	assert.Equal(t, "b.txt", first.Items[2].Name)
	require.NotEmpty(t, first.NextPageToken)

	req.PageToken = first.NextPageToken
	second, err := d.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "C.txt", second.Items[0].Name)
	assert.Empty(t, second.NextPageToken)
}

func TestDrive_ListRejectsBadPageToken(t *testing.T) {
	d := NewDrive("a@example.com", Limits{})
	_, err := d.List(context.Background(), adapter.ListRequest{PageToken: "garbage"})

	var remote *adapter.RemoteAPIError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.Status)
}

func TestDrive_GetMetadataNotFound(t *testing.T) {
	d := NewDrive("a@example.com", Limits{})
	_, err := d.GetMetadata(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestDrive_DownloadAndExport(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})
	bin := d.AddFile("data.bin", "application/octet-stream", RootID, []byte{1, 2, 3})
	doc := d.AddFile("Doc", "application/vnd.google-apps.document", RootID, []byte("body"))

	rc, err := d.Download(ctx, bin)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, []byte{1, 2, 3}, b)

	_, err = d.Download(ctx, doc)
	var remote *adapter.RemoteAPIError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusForbidden, remote.Status)

	rc, err = d.Export(ctx, doc, "application/pdf")
	require.NoError(t, err)
	b, _ = io.ReadAll(rc)
	assert.True(t, bytes.HasPrefix(b, []byte("application/pdf\n")))

	_, err = d.Export(ctx, bin, "application/pdf")
	assert.Error(t, err)
}

func TestDrive_DeleteRemovesSubtree(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})
	parent := d.AddFolder("p", RootID)
	child := d.AddFolder("c", parent)
	leaf := d.AddFile("f.txt", "text/plain", child, []byte("x"))

	ok, err := d.Delete(ctx, parent)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.GetMetadata(ctx, leaf)
	assert.ErrorIs(t, err, adapter.ErrNotFound)

	ok, err = d.Delete(ctx, parent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDrive_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})
	bad := d.AddFolder("bad", RootID)
	good := d.AddFolder("good", RootID)
	boom := errors.New("boom")
	d.Fail(OpList, bad, boom)

	_, err := d.List(ctx, adapter.ListRequest{Query: adapter.NewQuery().InFolder(bad)})
	assert.ErrorIs(t, err, boom)

	_, err = d.List(ctx, adapter.ListRequest{Query: adapter.NewQuery().InFolder(good)})
	assert.NoError(t, err)

	d.Fail(OpUpload, "", boom)
	_, err = d.Upload(ctx, adapter.UploadRequest{Name: "x", Content: strings.NewReader("")})
	assert.ErrorIs(t, err, boom)
}

func TestDrive_Limits(t *testing.T) {
	ctx := context.Background()
	limits := Limits{MaxNameLength: 10, MaxContentSize: 8, MaxItems: 2}

	t.Run("name length", func(t *testing.T) {
		d := NewDrive("a@example.com", limits)
		_, err := d.Upload(ctx, adapter.UploadRequest{Name: strings.Repeat("a", 11), Content: strings.NewReader("")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name too long")
	})

	t.Run("content size", func(t *testing.T) {
		d := NewDrive("a@example.com", limits)
		_, err := d.Upload(ctx, adapter.UploadRequest{Name: "f", Content: strings.NewReader("123456789")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content too large")
	})

	t.Run("item count", func(t *testing.T) {
		d := NewDrive("a@example.com", limits)
		for i := 0; i < 2; i++ {
			_, err := d.Upload(ctx, adapter.UploadRequest{Name: "f", Content: strings.NewReader("ok")})
			require.NoError(t, err)
		}
		_, err := d.Upload(ctx, adapter.UploadRequest{Name: "f", Content: strings.NewReader("ok")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "item limit reached")
	})
}

func TestDrive_AboutTracksUsage(t *testing.T) {
	ctx := context.Background()
	d := NewDrive("a@example.com", Limits{})
	id := d.AddFile("f", "text/plain", RootID, make([]byte, 100))

	acct, err := d.About(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", acct.Email)
	assert.Equal(t, int64(100), acct.UsageBytes)

	_, err = d.Delete(ctx, id)
	require.NoError(t, err)
	acct, _ = d.About(ctx)
	assert.Equal(t, int64(0), acct.UsageBytes)
}

func TestProvider_OneDrivePerToken(t *testing.T) {
	ctx := context.Background()
	seeded := 0
	p := NewProvider(Limits{}, func(d *Drive) { seeded++ })

	a1, err := p.ClientFor(ctx, &model.CredentialBundle{AccessToken: "a"})
	require.NoError(t, err)
	a2, _ := p.ClientFor(ctx, &model.CredentialBundle{AccessToken: "a"})
	b, _ := p.ClientFor(ctx, &model.CredentialBundle{AccessToken: "b"})

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, seeded)
}

func TestSeedDemo(t *testing.T) {
	d := NewDrive("demo", DemoLimits)
	SeedDemo(d)

	page, err := d.List(context.Background(), adapter.ListRequest{
		Query: adapter.NewQuery().InFolder(RootID).FoldersOnly(),
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}
