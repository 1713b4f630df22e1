package interfaces

import (
	"context"
	"time"

	"karsync/internal/models"
)

// RCloneClient provides an interface to interact with RClone daemon
type RCloneClient interface {
	StartJob(ctx context.Context, endpoint string, body models.SyncRequest) (int64, error)
	GetJobStatus(ctx context.Context, jobID int64) (*models.RCloneJobStatus, error)
	GetJobStats(ctx context.Context, jobID int64) (*models.RCloneJobStats, error)
	GetCoreStats(ctx context.Context) (*models.LiveStats, error)
	ListRemotesOfType(ctx context.Context, remoteType string) ([]string, error)
	ConfigCreate(ctx context.Context, req models.RCloneConfigCreate) error
	ListFiles(ctx context.Context, fs string) ([]models.RCloneListItem, error)
	Ping(ctx context.Context) error
}

// DaemonManager owns the lifecycle of the rclone rc server
type DaemonManager interface {
	EnsureRunning(ctx context.Context) error
	IsRunning(ctx context.Context) bool
	Stop(ctx context.Context) error
}

// JobRunner submits transfers and waits for them to finish
type JobRunner interface {
	Submit(ctx context.Context, endpoint string, body models.SyncRequest) (int64, error)
	Await(ctx context.Context, jobID int64) (*models.JobOutcome, error)
}

// Previewer runs dry-run syncs
type Previewer interface {
	Preview(ctx context.Context, req *models.TransferRequest) (*models.DryRunResult, error)
}

// StatsMonitor tracks live transfer statistics
type StatsMonitor interface {
	Register(rcloneJobID int64)
	Unregister(rcloneJobID int64)
	Snapshot() *models.LiveStats
}

// Authorizer drives the interactive credential flow
type Authorizer interface {
	Authorize(ctx context.Context, onURL func(url string)) (*models.AuthResult, error)
	Cancel() bool
	Status() *models.AuthStatus
}

// RemoteCatalog lists and inspects the configured Drive remotes
type RemoteCatalog interface {
	Remotes(ctx context.Context) ([]string, error)
	IsRegistered(ctx context.Context, name string) (bool, error)
	ListFiles(ctx context.Context, source, remote string) ([]models.RemoteFile, error)
}

// TransferGate admits one transfer at a time. The returned release func
// must be called when the transfer ends.
type TransferGate interface {
	Acquire(destination string) (release func(), err error)
	GetResourceStatus(destination string) ResourceStatus
}

// ResourceStatus represents system resource availability
type ResourceStatus struct {
	TransferActive     bool   `json:"transfer_active"`
	DiskSpaceAvailable bool   `json:"disk_space_available"`
	DestinationFree    uint64 `json:"destination_free_bytes"`
	MinFreeBytes       uint64 `json:"min_free_bytes"`
}

// TransferRepository provides database access for transfer history
type TransferRepository interface {
	CreateTransfer(record *models.TransferRecord) error
	GetTransfer(id int64) (*models.TransferRecord, error)
	GetTransfers(query models.TransferQuery) ([]*models.TransferRecord, error)
	UpdateTransfer(record *models.TransferRecord) error
	GetTransferSummary() (*models.TransferSummary, error)
	MarkRunningInterrupted() (int64, error)
	CleanupOldTransfers(before time.Time) (int, error)
}

// Notifier sends user-facing notifications about transfers
type Notifier interface {
	NotifyTransferCompleted(record *models.TransferRecord) error
	NotifyTransferFailed(record *models.TransferRecord) error
	NotifyPendingDeletions(record *models.TransferRecord, deleted []string) error
}

// TransferService manages downloads and previews
type TransferService interface {
	Preview(ctx context.Context, params models.TransferParams) (*models.DryRunResult, error)
	Download(ctx context.Context, params models.TransferParams, confirm models.ConfirmFunc) (*models.DownloadResult, error)
	StartDownload(ctx context.Context, params models.TransferParams, confirmDeletes bool) (*models.TransferRecord, error)
	StopDaemon(ctx context.Context) error
	ListRemotes(ctx context.Context) ([]string, error)
	ListFiles(ctx context.Context, source, remote string, selection models.Selection) ([]models.RemoteFile, error)
	GetTransfer(id int64) (*models.TransferRecord, error)
	GetTransfers(query models.TransferQuery) ([]*models.TransferRecord, error)
	GetTransferSummary() (*models.TransferSummary, error)
	LiveStats() *models.LiveStats
	ResourceStatus(destination string) ResourceStatus
}

// AuthService manages the authorization session
type AuthService interface {
	Start(ctx context.Context) (*models.AuthStatus, error)
	Authorize(ctx context.Context, onURL func(url string)) (*models.AuthResult, error)
	Cancel() bool
	Status() *models.AuthStatus
}
