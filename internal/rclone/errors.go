package rclone

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"syscall"
)

// HTTPError is a non-2xx answer from the daemon
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Message returns the "error" field of the rc error envelope, or the raw
// body when there is none
func (e *HTTPError) Message() string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return e.Body
}

// IsServerGone reports whether err means the daemon is no longer reachable,
// typically because it was stopped while a job was running.
func IsServerGone(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return false
	}

	// A dropped connection only counts at the transport level. A decode
	// error can wrap io.EOF too.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(urlErr, syscall.ECONNREFUSED) ||
			errors.Is(urlErr, syscall.ECONNRESET) ||
			errors.Is(urlErr, io.EOF) ||
			errors.Is(urlErr, io.ErrUnexpectedEOF) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "error sending request") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "server closed idle connection")
}

// IsJobNotFound reports whether the daemon no longer knows the job
func IsJobNotFound(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return strings.Contains(httpErr.Body, "job not found")
}
