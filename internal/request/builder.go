package request

import (
	"path/filepath"
	"strings"
	"time"

	"karsync/internal/drive"
	"karsync/internal/models"
	"karsync/internal/sanitizer"
)

const (
	DefaultSubfolderName = "Unofficial-Neuro-Karaoke-Archive"
	DefaultBackupPrefix  = "Backup-KAR-"

	backupTimeLayout     = "20060102_150405"
	trackRenamesStrategy = "hash"
)

// New validates params and returns the transfer request they describe.
func New(params models.TransferParams) (*models.TransferRequest, error) {
	remote := strings.TrimSpace(params.Remote)
	if remote == "" {
		return nil, models.ErrMissingIdentity
	}
	if strings.TrimSpace(params.Destination) == "" {
		return nil, models.ErrEmptyDestination
	}

	return &models.TransferRequest{
		Source:      strings.TrimSpace(params.Source),
		Destination: params.Destination,
		Remote:      remote,
		Mode:        params.Mode(),
		Subfolder:   params.CreateSubfolder,
		Selection:   params.SelectedFiles,
		Backup:      params.CreateBackup,
	}, nil
}

// Builder turns requests into rc request bodies
type Builder struct {
	SubfolderName string
	BackupPrefix  string
	Now           func() time.Time
}

func NewBuilder(subfolderName, backupPrefix string) *Builder {
	if subfolderName == "" {
		subfolderName = DefaultSubfolderName
	}
	if backupPrefix == "" {
		backupPrefix = DefaultBackupPrefix
	}
	return &Builder{
		SubfolderName: subfolderName,
		BackupPrefix:  backupPrefix,
		Now:           time.Now,
	}
}

// DestinationPath nests destination under the archive subfolder unless it
// already ends with it. Applying it to its own result changes nothing.
func (b *Builder) DestinationPath(destination string, subfolder bool) string {
	dst := filepath.Clean(destination)
	if !subfolder {
		return dst
	}
	if filepath.Base(dst) == b.SubfolderName {
		return dst
	}
	return filepath.Join(dst, b.SubfolderName)
}

// BackupPath returns a timestamped sibling of dst.
func (b *Builder) BackupPath(dst string) (string, error) {
	dst = filepath.Clean(dst)
	parent := filepath.Dir(dst)
	if parent == dst {
		return "", models.ErrNoParentDirectory
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return filepath.Join(parent, b.BackupPrefix+now().Format(backupTimeLayout)), nil
}

// Paths derives the filesystem strings for req
func (b *Builder) Paths(req *models.TransferRequest) (*models.FilesystemPaths, error) {
	dst := b.DestinationPath(req.Destination, req.Subfolder)

	paths := &models.FilesystemPaths{
		SrcFs: drive.SourceFs(req.Remote, req.Source),
		DstFs: dst,
	}

	if req.Backup {
		backup, err := b.BackupPath(dst)
		if err != nil {
			return nil, err
		}
		paths.BackupPath = backup
	}

	return paths, nil
}

// BuildFilter translates a selection into include rules. It returns nil for
// an unrestricted selection. Each selected path yields itself and its
// subtree; an empty restricted selection yields a rule matching nothing.
func BuildFilter(selection models.Selection, mode models.Mode) *models.TransferFilter {
	if !selection.Restricted() {
		return nil
	}

	filter := &models.TransferFilter{DeleteExcluded: mode.DeleteExcluded()}

	paths := selection.Paths()
	if len(paths) == 0 {
		filter.IncludeRule = []string{models.NoMatchRule}
		return filter
	}

	filter.IncludeRule = make([]string, 0, 2*len(paths))
	for _, p := range paths {
		clean, _ := sanitizer.SelectionPath(p)
		filter.IncludeRule = append(filter.IncludeRule, "/"+clean, "/"+clean+"/**")
	}
	return filter
}

// MarkSelected flags the listed entries a transfer of selection would
// include, using the same include rules rclone receives.
func MarkSelected(files []models.RemoteFile, selection models.Selection) {
	filter := BuildFilter(selection, models.CopyMode())
	for i := range files {
		files[i].Selected = filter.Matches(files[i].Path)
	}
}

// Body assembles the rc request for req over paths
func (b *Builder) Body(req *models.TransferRequest, paths *models.FilesystemPaths) models.SyncRequest {
	body := models.SyncRequest{
		Async: true,
		SrcFs: paths.SrcFs,
		DstFs: paths.DstFs,
	}

	cfg := &models.TransferConfig{BackupDir: paths.BackupPath}
	if req.Mode.TrackRenames() {
		cfg.TrackRenames = true
		cfg.TrackRenamesStrategy = trackRenamesStrategy
	}
	if !cfg.IsEmpty() {
		body.Config = cfg
	}

	body.Filter = BuildFilter(req.Selection, req.Mode)
	return body
}

// Build is Paths followed by Body
func (b *Builder) Build(req *models.TransferRequest) (models.SyncRequest, *models.FilesystemPaths, error) {
	paths, err := b.Paths(req)
	if err != nil {
		return models.SyncRequest{}, nil, err
	}
	return b.Body(req, paths), paths, nil
}
