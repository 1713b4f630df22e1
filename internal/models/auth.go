package models

import "time"

type AuthState string

const (
	AuthStateIdle      AuthState = "idle"
	AuthStateRunning   AuthState = "running"
	AuthStateSucceeded AuthState = "succeeded"
	AuthStateFailed    AuthState = "failed"
	AuthStateCancelled AuthState = "cancelled"
)

// AuthResult is the terminal outcome of one authorization session.
// Cancellation is reported here rather than as an error.
type AuthResult struct {
	State   AuthState `json:"state"`
	Profile string    `json:"profile,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (r AuthResult) Succeeded() bool { return r.State == AuthStateSucceeded }

// AuthStatus is a snapshot of the authorizer for status queries
type AuthStatus struct {
	State     AuthState  `json:"state"`
	URL       string     `json:"url,omitempty"`
	Profile   string     `json:"profile,omitempty"`
	Message   string     `json:"message,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// RemoteFile is one entry of a remote folder listing
type RemoteFile struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	// Selected reports whether the current selection transfers this entry
	Selected bool `json:"selected"`
}
