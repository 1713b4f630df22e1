package models

import "errors"

// ConfigurationError rejects a request before anything reaches the backend.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

var (
	ErrMissingIdentity   = &ConfigurationError{Reason: "remote configuration is required, please authorize first"}
	ErrUnknownIdentity   = &ConfigurationError{Reason: "remote configuration is not registered with rclone"}
	ErrEmptyDestination  = &ConfigurationError{Reason: "destination path is required"}
	ErrNoParentDirectory = &ConfigurationError{Reason: "cannot get parent directory of destination"}
)

// SubmissionError means the backend did not accept the transfer. The backend
// may still have started the job.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return "sync start failed: " + e.Message
}

// StatusCheckError means the backend answered a status poll with a failure.
type StatusCheckError struct {
	Message string
}

func (e *StatusCheckError) Error() string {
	return "job status check failed: " + e.Message
}

// JobFailedError carries the backend's error message verbatim.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	return "job failed: " + e.Message
}

var (
	ErrServerUnavailable  = errors.New("timed out waiting for rclone rc server")
	ErrTransferInProgress = errors.New("another transfer is already running")
	ErrInsufficientSpace  = errors.New("not enough free space at destination")
)
