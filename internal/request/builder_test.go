package request

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karsync/internal/models"
)

func fixedBuilder() *Builder {
	b := NewBuilder("", "")
	b.Now = func() time.Time {
		return time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)
	}
	return b
}

func TestNew(t *testing.T) {
	t.Run("missing remote", func(t *testing.T) {
		_, err := New(models.TransferParams{Destination: "/music"})
		assert.ErrorIs(t, err, models.ErrMissingIdentity)

		_, err = New(models.TransferParams{Destination: "/music", Remote: "   "})
		assert.ErrorIs(t, err, models.ErrMissingIdentity)
	})

	t.Run("missing destination", func(t *testing.T) {
		_, err := New(models.TransferParams{Remote: "gdrive"})
		assert.ErrorIs(t, err, models.ErrEmptyDestination)
	})

	t.Run("valid", func(t *testing.T) {
		req, err := New(models.TransferParams{
			Source:          "abc",
			Destination:     "/music",
			Remote:          "gdrive",
			SyncMode:        true,
			DeleteExcluded:  true,
			CreateSubfolder: true,
			CreateBackup:    true,
			SelectedFiles:   models.SelectOnly([]string{"a.kar"}),
		})
		require.NoError(t, err)
		assert.Equal(t, "gdrive", req.Remote)
		assert.True(t, req.Mode.IsSync())
		assert.True(t, req.Mode.DeleteExcluded())
		assert.True(t, req.Subfolder)
		assert.True(t, req.Backup)
		assert.Equal(t, []string{"a.kar"}, req.Selection.Paths())
	})
}

func TestDestinationPath(t *testing.T) {
	b := fixedBuilder()
	base := filepath.Join(t.TempDir(), "music")

	nested := b.DestinationPath(base, true)
	assert.Equal(t, filepath.Join(base, DefaultSubfolderName), nested)
	assert.Equal(t, nested, b.DestinationPath(nested, true), "nesting must be idempotent")
	assert.Equal(t, nested, b.DestinationPath(nested+string(filepath.Separator), true))

	assert.Equal(t, base, b.DestinationPath(base, false))
}

func TestBackupPath(t *testing.T) {
	b := fixedBuilder()
	parent := t.TempDir()
	dst := filepath.Join(parent, "music", DefaultSubfolderName)

	backup, err := b.BackupPath(dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "music", "Backup-KAR-20250314_150926"), backup)

	_, err = b.BackupPath(string(filepath.Separator))
	assert.ErrorIs(t, err, models.ErrNoParentDirectory)
}

func TestPaths(t *testing.T) {
	b := fixedBuilder()
	root := t.TempDir()

	req := &models.TransferRequest{
		Source:      "https://drive.google.com/drive/folders/FOLDER123?usp=sharing",
		Destination: root,
		Remote:      "gdrive",
		Mode:        models.CopyMode(),
		Subfolder:   true,
		Backup:      true,
	}

	paths, err := b.Paths(req)
	require.NoError(t, err)
	assert.Equal(t, "gdrive,root_folder_id=FOLDER123:", paths.SrcFs)
	assert.Equal(t, filepath.Join(root, DefaultSubfolderName), paths.DstFs)
	assert.Equal(t, filepath.Join(root, "Backup-KAR-20250314_150926"), paths.BackupPath)

	req.Backup = false
	paths, err = b.Paths(req)
	require.NoError(t, err)
	assert.Empty(t, paths.BackupPath)
}

func TestPaths_RootWithoutParent(t *testing.T) {
	b := fixedBuilder()
	req := &models.TransferRequest{
		Source:      "abc",
		Destination: string(filepath.Separator),
		Remote:      "gdrive",
		Backup:      true,
	}

	_, err := b.Paths(req)
	assert.ErrorIs(t, err, models.ErrNoParentDirectory)

	req.Backup = false
	paths, err := b.Paths(req)
	require.NoError(t, err)
	assert.Equal(t, string(filepath.Separator), paths.DstFs)
}

func TestBuildFilter(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		assert.Nil(t, BuildFilter(models.SelectAll(), models.SyncMode(true, false)))
	})

	t.Run("explicitly empty selection matches nothing", func(t *testing.T) {
		filter := BuildFilter(models.SelectOnly(nil), models.CopyMode())
		require.NotNil(t, filter)
		assert.Equal(t, []string{models.NoMatchRule}, filter.IncludeRule)
		assert.False(t, filter.Matches("a.kar"))
		assert.False(t, filter.Matches("Album/a.kar"))
	})

	t.Run("two rules per path", func(t *testing.T) {
		selected := []string{"/Album", "song.kar", "Other/Disc 1"}
		filter := BuildFilter(models.SelectOnly(selected), models.CopyMode())
		require.NotNil(t, filter)
		assert.Len(t, filter.IncludeRule, 2*len(selected))
		assert.Equal(t, []string{
			"/Album", "/Album/**",
			"/song.kar", "/song.kar/**",
			"/Other/Disc 1", "/Other/Disc 1/**",
		}, filter.IncludeRule)
		assert.True(t, filter.Matches("Album/Disc 2/track.kar"))
		assert.False(t, filter.DeleteExcluded)
	})

	t.Run("delete excluded only in sync mode", func(t *testing.T) {
		sel := models.SelectOnly([]string{"a"})
		assert.True(t, BuildFilter(sel, models.SyncMode(true, false)).DeleteExcluded)
		assert.False(t, BuildFilter(sel, models.SyncMode(false, false)).DeleteExcluded)
		assert.False(t, BuildFilter(sel, models.CopyMode()).DeleteExcluded)
	})
}

func TestBody(t *testing.T) {
	b := fixedBuilder()
	root := t.TempDir()

	req := &models.TransferRequest{
		Source:      "abc",
		Destination: root,
		Remote:      "gdrive",
		Mode:        models.SyncMode(true, true),
		Backup:      true,
		Selection:   models.SelectOnly([]string{"x"}),
	}

	body, paths, err := b.Build(req)
	require.NoError(t, err)
	assert.True(t, body.Async)
	assert.Equal(t, paths.SrcFs, body.SrcFs)
	assert.Equal(t, paths.DstFs, body.DstFs)
	require.NotNil(t, body.Config)
	assert.Equal(t, paths.BackupPath, body.Config.BackupDir)
	assert.True(t, body.Config.TrackRenames)
	assert.Equal(t, "hash", body.Config.TrackRenamesStrategy)
	assert.False(t, body.Config.DryRun)
	require.NotNil(t, body.Filter)
	assert.True(t, body.Filter.DeleteExcluded)

	plain := &models.TransferRequest{Source: "abc", Destination: root, Remote: "gdrive", Mode: models.CopyMode()}
	body, _, err = b.Build(plain)
	require.NoError(t, err)
	assert.Nil(t, body.Config)
	assert.Nil(t, body.Filter)
}

func TestMarkSelected(t *testing.T) {
	listing := func() []models.RemoteFile {
		return []models.RemoteFile{
			{Path: "Album", IsDir: true},
			{Path: "Album/a.kar"},
			{Path: "Album/Live/b.kar"},
			{Path: "Other/c.kar"},
			{Path: "Other/[weird] name.kar"},
		}
	}
	selected := func(files []models.RemoteFile) []string {
		var out []string
		for _, f := range files {
			if f.Selected {
				out = append(out, f.Path)
			}
		}
		return out
	}

	t.Run("everything", func(t *testing.T) {
		files := listing()
		MarkSelected(files, models.SelectAll())
		assert.Len(t, selected(files), len(files))
	})

	t.Run("folder selects its subtree", func(t *testing.T) {
		files := listing()
		MarkSelected(files, models.SelectOnly([]string{"/Album/"}))
		assert.Equal(t, []string{"Album", "Album/a.kar", "Album/Live/b.kar"}, selected(files))
	})

	t.Run("single file", func(t *testing.T) {
		files := listing()
		MarkSelected(files, models.SelectOnly([]string{"Other/c.kar"}))
		assert.Equal(t, []string{"Other/c.kar"}, selected(files))
	})

	t.Run("empty selection", func(t *testing.T) {
		files := listing()
		MarkSelected(files, models.SelectOnly(nil))
		assert.Empty(t, selected(files))
	})
}
