package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TransferKind string

const (
	TransferKindDownload TransferKind = "download"
	TransferKindPreview  TransferKind = "preview"
)

type TransferStatus string

const (
	TransferStatusRunning   TransferStatus = "running"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// TransferRecord is the persisted history entry of one download or preview
type TransferRecord struct {
	ID           int64          `json:"id" db:"id"`
	Kind         TransferKind   `json:"kind" db:"kind"`
	Source       string         `json:"source" db:"source"`
	Destination  string         `json:"destination" db:"destination"`
	Remote       string         `json:"remote" db:"remote"`
	Mode         string         `json:"mode" db:"mode"`
	Selection    Selection      `json:"selection" db:"selection"`
	BackupPath   string         `json:"backup_path,omitempty" db:"backup_path"`
	Status       TransferStatus `json:"status" db:"status"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	Message      string         `json:"message,omitempty" db:"message"`
	RCloneJobID  *int64         `json:"rclone_job_id,omitempty" db:"rclone_job_id"`
	Stats        TransferStats  `json:"stats" db:"stats"`
	DeletedPaths PathList       `json:"deleted_paths,omitempty" db:"deleted_paths"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

type TransferStats struct {
	Checks    int64 `json:"checks"`
	Transfers int64 `json:"transfers"`
	Deletes   int64 `json:"deletes"`
	Errors    int64 `json:"errors"`
}

// PathList is a JSON-encoded list of relative paths
type PathList []string

// NewTransferRecord starts a running history entry for req
func NewTransferRecord(kind TransferKind, req *TransferRequest) *TransferRecord {
	now := time.Now()
	return &TransferRecord{
		Kind:        kind,
		Source:      req.Source,
		Destination: req.Destination,
		Remote:      req.Remote,
		Mode:        req.Mode.String(),
		Selection:   req.Selection,
		Status:      TransferStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Database value methods for custom types
func (ts TransferStats) Value() (driver.Value, error) {
	return json.Marshal(ts)
}

func (ts *TransferStats) Scan(value interface{}) error {
	return scanJSON(value, ts, "TransferStats")
}

func (pl PathList) Value() (driver.Value, error) {
	if pl == nil {
		return nil, nil
	}
	return json.Marshal([]string(pl))
}

func (pl *PathList) Scan(value interface{}) error {
	return scanJSON(value, (*[]string)(pl), "PathList")
}

func (s Selection) Value() (driver.Value, error) {
	return s.MarshalJSON()
}

func (s *Selection) Scan(value interface{}) error {
	if value == nil {
		*s = SelectAll()
		return nil
	}
	return scanJSON(value, s, "Selection")
}

func scanJSON(value interface{}, dest interface{}, name string) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %s", value, name)
	}

	return json.Unmarshal(bytes, dest)
}

// Helper methods
func (t *TransferRecord) IsActive() bool {
	return t.Status == TransferStatusRunning
}

func (t *TransferRecord) IsCompleted() bool {
	return t.Status == TransferStatusCompleted || t.Status == TransferStatusFailed || t.Status == TransferStatusCancelled
}

func (t *TransferRecord) MarkSubmitted(rcloneJobID int64) {
	t.RCloneJobID = &rcloneJobID
	t.UpdatedAt = time.Now()
}

// MarkFinished records a terminal outcome. A stopped outcome marks the
// record cancelled rather than completed.
func (t *TransferRecord) MarkFinished(outcome *JobOutcome) {
	now := time.Now()
	if outcome.JobID != 0 {
		id := outcome.JobID
		t.RCloneJobID = &id
	}
	t.Stats = TransferStats{
		Checks:    outcome.Checks,
		Transfers: outcome.Transfers,
		Deletes:   outcome.Deletes,
		Errors:    outcome.Errors,
	}
	t.Message = outcome.Message
	if outcome.Stopped {
		t.Status = TransferStatusCancelled
	} else {
		t.Status = TransferStatusCompleted
	}
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *TransferRecord) MarkFailed(errorMsg string) {
	now := time.Now()
	t.Status = TransferStatusFailed
	t.ErrorMessage = errorMsg
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkCancelled ends a transfer that never reached the backend
func (t *TransferRecord) MarkCancelled(msg string) {
	now := time.Now()
	t.Status = TransferStatusCancelled
	t.Message = msg
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// TransferQuery represents filtering options for history queries
type TransferQuery struct {
	Status    []TransferStatus `json:"status,omitempty"`
	Kind      TransferKind     `json:"kind,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
	SortOrder string           `json:"sort_order,omitempty"`
}

// TransferSummary represents aggregated history statistics
type TransferSummary struct {
	TotalTransfers     int `json:"total_transfers"`
	RunningTransfers   int `json:"running_transfers"`
	CompletedTransfers int `json:"completed_transfers"`
	FailedTransfers    int `json:"failed_transfers"`
	CancelledTransfers int `json:"cancelled_transfers"`
}
