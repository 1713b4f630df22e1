package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Transfer endpoints on the rclone rc daemon
const (
	EndpointCopy = "/sync/copy"
	EndpointSync = "/sync/sync"
)

// Mode selects copy or sync semantics. Delete-excluded and track-renames only
// exist on the sync variant, so a copy carrying them cannot be built.
type Mode struct {
	sync           bool
	deleteExcluded bool
	trackRenames   bool
}

// CopyMode copies new and changed files and never deletes at the destination.
func CopyMode() Mode {
	return Mode{}
}

// SyncMode makes the destination match the source, deleting files absent from it.
func SyncMode(deleteExcluded, trackRenames bool) Mode {
	return Mode{sync: true, deleteExcluded: deleteExcluded, trackRenames: trackRenames}
}

func (m Mode) IsSync() bool         { return m.sync }
func (m Mode) DeleteExcluded() bool { return m.sync && m.deleteExcluded }
func (m Mode) TrackRenames() bool   { return m.sync && m.trackRenames }

// Endpoint returns the rc endpoint implementing the mode.
func (m Mode) Endpoint() string {
	if m.sync {
		return EndpointSync
	}
	return EndpointCopy
}

func (m Mode) String() string {
	if m.sync {
		return "sync"
	}
	return "copy"
}

// Selection restricts a transfer to a set of relative paths. The zero value
// selects everything; a restricted selection with no paths selects nothing.
type Selection struct {
	paths      []string
	restricted bool
}

// SelectAll returns the unrestricted selection.
func SelectAll() Selection {
	return Selection{}
}

// SelectOnly restricts the transfer to paths, even when paths is empty.
func SelectOnly(paths []string) Selection {
	cp := make([]string, len(paths))
	copy(cp, paths)
	return Selection{paths: cp, restricted: true}
}

func (s Selection) Restricted() bool { return s.restricted }

func (s Selection) Paths() []string {
	if !s.restricted {
		return nil
	}
	cp := make([]string, len(s.paths))
	copy(cp, s.paths)
	return cp
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.restricted {
		return []byte("null"), nil
	}
	return json.Marshal(s.paths)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*s = SelectAll()
		return nil
	}
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	*s = SelectOnly(paths)
	return nil
}

// TransferParams is the user-facing form of a transfer, as sent by the
// front-end or assembled from CLI flags.
type TransferParams struct {
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	Remote          string    `json:"remote_config"`
	SyncMode        bool      `json:"sync_mode"`
	DeleteExcluded  bool      `json:"delete_excluded"`
	TrackRenames    bool      `json:"track_renames"`
	CreateSubfolder bool      `json:"create_subfolder"`
	CreateBackup    bool      `json:"create_backup"`
	SelectedFiles   Selection `json:"selected_files"`
}

// Mode folds the sync flags into a Mode. Sync-only flags are dropped in copy mode.
func (p TransferParams) Mode() Mode {
	if !p.SyncMode {
		return CopyMode()
	}
	return SyncMode(p.DeleteExcluded, p.TrackRenames)
}

// TransferRequest is one validated transfer intent. Build it with request.New.
type TransferRequest struct {
	Source      string
	Destination string
	Remote      string
	Mode        Mode
	Subfolder   bool
	Selection   Selection
	Backup      bool
}

// FilesystemPaths are derived from a TransferRequest and never persisted.
type FilesystemPaths struct {
	SrcFs      string
	DstFs      string
	BackupPath string
}

// NoMatchRule is an include rule that no real file is expected to match. It
// stands in for an explicitly empty selection.
const NoMatchRule = "non_existent_file_marker"

// TransferFilter is the rclone _filter block.
type TransferFilter struct {
	IncludeRule    []string `json:"IncludeRule"`
	DeleteExcluded bool     `json:"DeleteExcluded,omitempty"`
}

// Matches reports whether the rclone include rules would admit relPath.
// Rules starting with "/" are anchored at the transfer root; others match
// at any depth.
func (f *TransferFilter) Matches(relPath string) bool {
	if f == nil {
		return true
	}
	p := "/" + strings.TrimLeft(relPath, "/")
	for _, rule := range f.IncludeRule {
		pattern := rule
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/**/" + pattern
		}
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// TransferConfig is the rclone _config block.
type TransferConfig struct {
	BackupDir            string `json:"BackupDir,omitempty"`
	DryRun               bool   `json:"DryRun,omitempty"`
	TrackRenames         bool   `json:"TrackRenames,omitempty"`
	TrackRenamesStrategy string `json:"TrackRenamesStrategy,omitempty"`
}

func (c *TransferConfig) IsEmpty() bool {
	return c == nil || *c == TransferConfig{}
}

// SyncRequest is the body posted to sync/copy and sync/sync.
type SyncRequest struct {
	Async  bool            `json:"_async"`
	SrcFs  string          `json:"srcFs"`
	DstFs  string          `json:"dstFs"`
	Config *TransferConfig `json:"_config,omitempty"`
	Filter *TransferFilter `json:"_filter,omitempty"`
}

// WithDryRun returns a copy of the request with the dry-run flag set.
func (r SyncRequest) WithDryRun() SyncRequest {
	cfg := TransferConfig{}
	if r.Config != nil {
		cfg = *r.Config
	}
	cfg.DryRun = true
	r.Config = &cfg
	return r
}

// JobOutcome holds the counters of a finished job. Stopped is set when the
// job ended outside our control (daemon gone or job vanished); the counters
// are zero in that case and Message explains what happened.
type JobOutcome struct {
	JobID     int64  `json:"job_id"`
	Checks    int64  `json:"checks"`
	Transfers int64  `json:"transfers"`
	Deletes   int64  `json:"deletes"`
	Errors    int64  `json:"errors"`
	Stopped   bool   `json:"stopped"`
	Message   string `json:"message,omitempty"`
}

func (o *JobOutcome) Summary() string {
	return fmt.Sprintf("Checks: %d, Transfers: %d, Deletes: %d, Errors: %d",
		o.Checks, o.Transfers, o.Deletes, o.Errors)
}

// DryRunResult is what a preview reports about a sync.
type DryRunResult struct {
	WouldDelete  bool        `json:"would_delete"`
	DeletedFiles []string    `json:"deleted_files"`
	Summary      string      `json:"stats"`
	Stopped      bool        `json:"stopped,omitempty"`
	Outcome      *JobOutcome `json:"outcome,omitempty"`
}

// ConfirmFunc decides whether a sync may go ahead after its preview found
// files to delete.
type ConfirmFunc func(preview *DryRunResult) bool

// DownloadResult is the outcome of a download. Preview is set for syncs;
// Declined means the deletions were not confirmed and nothing was transferred.
type DownloadResult struct {
	Transfer *TransferRecord `json:"transfer"`
	Preview  *DryRunResult   `json:"preview,omitempty"`
	Declined bool            `json:"declined"`
}
