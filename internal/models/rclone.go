package models

// RCloneJobStatus represents the status of a running job
type RCloneJobStatus struct {
	ID       int64   `json:"id"`
	Group    string  `json:"group"`
	Error    string  `json:"error"`
	Finished bool    `json:"finished"`
	Success  bool    `json:"success"`
	Duration float64 `json:"duration"`
}

// RCloneJobStats holds the counters reported by core/stats for one job group.
// Fields absent from the response are zero.
type RCloneJobStats struct {
	Checks    int64 `json:"checks"`
	Transfers int64 `json:"transfers"`
	Deletes   int64 `json:"deletes"`
	Errors    int64 `json:"errors"`
}

// LiveStats is a core/stats snapshot taken while a transfer runs
type LiveStats struct {
	Bytes        int64              `json:"bytes"`
	TotalBytes   int64              `json:"totalBytes"`
	Speed        float64            `json:"speed"`
	Transfers    int64              `json:"transfers"`
	ETA          *int64             `json:"eta,omitempty"`
	Transferring []TransferringFile `json:"transferring"`
}

// TransferringFile is one in-flight file from core/stats
type TransferringFile struct {
	Name       string  `json:"name"`
	Size       int64   `json:"size"`
	Bytes      int64   `json:"bytes"`
	Percentage int     `json:"percentage"`
	Speed      float64 `json:"speed"`
	SpeedAvg   float64 `json:"speedAvg"`
	ETA        *int64  `json:"eta,omitempty"`
	Group      string  `json:"group,omitempty"`
	JobID      int64   `json:"job_id,omitempty"`
}

// RCloneListItem is one entry of operations/list
type RCloneListItem struct {
	Path     string `json:"Path"`
	Name     string `json:"Name"`
	Size     int64  `json:"Size"`
	MimeType string `json:"MimeType"`
	IsDir    bool   `json:"IsDir"`
	ID       string `json:"ID,omitempty"`
}

// RCloneConfigCreate is the body of config/create
type RCloneConfigCreate struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
	Opt        map[string]interface{} `json:"opt,omitempty"`
}
