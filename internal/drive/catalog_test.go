package drive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karsync/internal/models"
	"karsync/internal/rclone"
	"karsync/internal/testutil"
)

type stubDaemon struct {
	err   error
	calls int
}

func (d *stubDaemon) EnsureRunning(ctx context.Context) error {
	d.calls++
	return d.err
}

func (d *stubDaemon) IsRunning(ctx context.Context) bool { return d.err == nil }

func (d *stubDaemon) Stop(ctx context.Context) error { return nil }

func newTestCatalog(t *testing.T) (*Catalog, *testutil.FakeRC, *stubDaemon) {
	t.Helper()
	fake := testutil.NewFakeRC(t)
	daemon := &stubDaemon{}
	return NewCatalog(rclone.NewClient(fake.URL(), 0), daemon), fake, daemon
}

func TestCatalog_Remotes(t *testing.T) {
	catalog, fake, daemon := newTestCatalog(t)
	fake.Remotes["zeta"] = map[string]interface{}{"type": "drive"}
	fake.Remotes["alpha"] = map[string]interface{}{"type": "drive"}
	fake.Remotes["bucket"] = map[string]interface{}{"type": "s3"}

	names, err := catalog.Remotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
	assert.Equal(t, 1, daemon.calls)
}

func TestCatalog_RemotesDaemonUnavailable(t *testing.T) {
	catalog, fake, daemon := newTestCatalog(t)
	daemon.err = models.ErrServerUnavailable

	_, err := catalog.Remotes(context.Background())
	assert.ErrorIs(t, err, models.ErrServerUnavailable)
	assert.Empty(t, fake.Requests("/config/dump"))
}

func TestCatalog_RegisterThenIsRegistered(t *testing.T) {
	catalog, fake, _ := newTestCatalog(t)
	ctx := context.Background()

	ok, err := catalog.IsRegistered(ctx, "gdrive_unofficial_neuro_kar")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, catalog.Register(ctx, "gdrive_unofficial_neuro_kar", `{"token":"abc"}`))

	reqs := fake.Requests("/config/create")
	require.Len(t, reqs, 1)
	body := reqs[0].Body
	assert.Equal(t, "gdrive_unofficial_neuro_kar", body["name"])
	assert.Equal(t, "drive", body["type"])
	assert.Equal(t, map[string]interface{}{"token": `{"token":"abc"}`}, body["parameters"])
	assert.Equal(t, map[string]interface{}{"nonInteractive": true}, body["opt"])

	ok, err = catalog.IsRegistered(ctx, "gdrive_unofficial_neuro_kar")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCatalog_RegisterRejected(t *testing.T) {
	catalog, _, _ := newTestCatalog(t)

	err := catalog.Register(context.Background(), "", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config")

	var httpErr *rclone.HTTPError
	assert.True(t, errors.As(err, &httpErr))
}

func TestCatalog_ListFiles(t *testing.T) {
	catalog, fake, _ := newTestCatalog(t)
	fake.Files = []models.RCloneListItem{
		{Path: "Songs/b.mp3", Name: "b.mp3", Size: 20, MimeType: "audio/mpeg"},
		{Path: "readme.txt", Name: "readme.txt", Size: 5, MimeType: "text/plain"},
	}

	files, err := catalog.ListFiles(context.Background(), "https://drive.google.com/drive/folders/ROOT?usp=sharing", "gdrive")
	require.NoError(t, err)

	reqs := fake.Requests("/operations/list")
	require.Len(t, reqs, 1)
	assert.Equal(t, "gdrive,root_folder_id=ROOT:", reqs[0].Body["fs"])
	assert.Equal(t, "", reqs[0].Body["remote"])
	assert.Equal(t, map[string]interface{}{"recurse": true}, reqs[0].Body["opt"])

	require.Len(t, files, 3)
	assert.Equal(t, models.RemoteFile{Path: "Songs", Name: "Songs", IsDir: true, MimeType: DirectoryMime}, files[0])
	assert.Equal(t, "b.mp3", files[1].Name)
	assert.Equal(t, "readme.txt", files[2].Name)
}

func TestCatalog_ListFilesRequiresRemote(t *testing.T) {
	catalog, fake, _ := newTestCatalog(t)

	_, err := catalog.ListFiles(context.Background(), "ROOT", "  ")
	assert.ErrorIs(t, err, models.ErrMissingIdentity)
	assert.Empty(t, fake.Requests("/operations/list"))
}

func TestBuildListing(t *testing.T) {
	items := []models.RCloneListItem{
		{Path: "a/b/c.txt", Name: "c.txt", Size: 3},
		{Path: "a", Name: "a", IsDir: true, MimeType: DirectoryMime},
		{Path: "Zed.txt", Name: "Zed.txt", Size: 1},
		{Path: "apple.txt", Name: "apple.txt", Size: 2},
		{Path: "B", Name: "B", IsDir: true},
	}

	files := BuildListing(items)

	var order []string
	for _, f := range files {
		order = append(order, f.Path)
	}
	assert.Equal(t, []string{"a", "B", "a/b", "apple.txt", "a/b/c.txt", "Zed.txt"}, order)

	for _, f := range files {
		if f.Path == "a/b" {
			assert.True(t, f.IsDir)
			assert.Equal(t, "b", f.Name)
			assert.Equal(t, DirectoryMime, f.MimeType)
		}
	}
}

func TestBuildListing_Empty(t *testing.T) {
	files := BuildListing(nil)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}
