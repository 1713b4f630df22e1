// Package auth runs `rclone authorize` and registers the resulting token.
package auth

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"karsync/internal/models"
	"karsync/internal/process"
)

const (
	DefaultProfileName = "gdrive_unofficial_neuro_kar"
	DefaultProvider    = "drive"
	DefaultURLMarker   = "Please go to the following link: "
)

// Registrar stores an authorized token as a named rclone remote
type Registrar interface {
	Register(ctx context.Context, name, token string) error
}

type Config struct {
	Binary      string
	Provider    string
	ProfileName string
	URLMarker   string
}

// session is one running authorization. Closing cancel kills it.
type session struct {
	cancel     chan struct{}
	cancelOnce sync.Once
	startedAt  time.Time

	mu  sync.Mutex
	url string
}

func (s *session) requestCancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

func (s *session) cancelled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

func (s *session) setURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

func (s *session) getURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Authorizer drives the interactive authorization subprocess. At most one
// session runs; starting another cancels the previous one.
type Authorizer struct {
	config    Config
	registrar Registrar
	registry  *process.Registry

	// newCommand builds the authorize command; replaced in tests
	newCommand func(name string, args ...string) *exec.Cmd

	mu      sync.Mutex
	current *session
	last    models.AuthStatus
}

func NewAuthorizer(cfg Config, registrar Registrar, registry *process.Registry) *Authorizer {
	if cfg.Binary == "" {
		cfg.Binary = "rclone"
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.ProfileName == "" {
		cfg.ProfileName = DefaultProfileName
	}
	if cfg.URLMarker == "" {
		cfg.URLMarker = DefaultURLMarker
	}
	if registry == nil {
		registry = process.NewRegistry()
	}

	return &Authorizer{
		config:     cfg,
		registrar:  registrar,
		registry:   registry,
		newCommand: exec.Command,
		last:       models.AuthStatus{State: models.AuthStateIdle},
	}
}

// Authorize runs one session to completion. onURL receives the
// authorization link once. A failed session returns its result together
// with an error; a cancelled one is not an error.
func (a *Authorizer) Authorize(ctx context.Context, onURL func(url string)) (*models.AuthResult, error) {
	// The session is current before the spawn so a Cancel issued while
	// the process starts is never lost.
	sess := a.install()
	cmd := a.newCommand(a.config.Binary, "authorize", a.config.Provider, "--auth-no-open-browser")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return a.fail(sess, fmt.Sprintf("failed to create stdout pipe: %v", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return a.fail(sess, fmt.Sprintf("failed to create stderr pipe: %v", err))
	}

	if sess.cancelled() {
		slog.Info("authorization cancelled before spawn")
		return a.cancelled(sess)
	}

	if err := cmd.Start(); err != nil {
		return a.fail(sess, fmt.Sprintf("failed to spawn rclone authorize: %v", err))
	}
	a.registry.Add(cmd.Process)
	slog.Info("started rclone authorize", "pid", cmd.Process.Pid, "provider", a.config.Provider)

	var output bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Reads stop when the process exits or is killed
		_, _ = io.Copy(&output, stdout)
	}()
	go func() {
		defer wg.Done()
		a.watchForURL(stderr, sess, onURL)
	}()

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case <-sess.cancel:
		a.kill(cmd, done)
		slog.Info("authorization cancelled")
		return a.cancelled(sess)

	case <-ctx.Done():
		a.kill(cmd, done)
		a.release(sess, models.AuthStatus{State: models.AuthStateCancelled, Message: ctx.Err().Error()})
		return nil, ctx.Err()

	case err := <-done:
		if sess.cancelled() {
			return a.cancelled(sess)
		}
		if err != nil {
			return a.fail(sess, fmt.Sprintf("rclone authorize failed: %v", err))
		}

		token, ok := ExtractJSON(output.String())
		if !ok {
			return a.fail(sess, "failed to extract token from auth output")
		}

		if err := a.registrar.Register(ctx, a.config.ProfileName, token); err != nil {
			return a.fail(sess, fmt.Sprintf("failed to create config: %v", err))
		}

		slog.Info("authorization succeeded", "profile", a.config.ProfileName)
		return a.finish(sess, &models.AuthResult{
			State:   models.AuthStateSucceeded,
			Profile: a.config.ProfileName,
		}, nil)
	}
}

// Cancel stops the running session. It reports whether there was one; a
// second call is a no-op.
func (a *Authorizer) Cancel() bool {
	a.mu.Lock()
	sess := a.current
	a.current = nil
	a.mu.Unlock()

	if sess == nil {
		return false
	}
	sess.requestCancel()
	return true
}

// Status reports the running session, or the outcome of the last one
func (a *Authorizer) Status() *models.AuthStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		started := a.current.startedAt
		return &models.AuthStatus{
			State:     models.AuthStateRunning,
			URL:       a.current.getURL(),
			StartedAt: &started,
		}
	}
	status := a.last
	return &status
}

// install makes a new session current and cancels the one it replaces
func (a *Authorizer) install() *session {
	sess := &session{cancel: make(chan struct{}), startedAt: time.Now()}

	a.mu.Lock()
	prev := a.current
	a.current = sess
	a.mu.Unlock()

	if prev != nil {
		slog.Info("replacing running authorization session")
		prev.requestCancel()
	}
	return sess
}

// release clears the slot if sess still owns it and records its outcome
func (a *Authorizer) release(sess *session, status models.AuthStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == sess {
		a.current = nil
	}
	if sess != nil {
		started := sess.startedAt
		status.StartedAt = &started
		status.URL = sess.getURL()
	}
	a.last = status
}

func (a *Authorizer) finish(sess *session, result *models.AuthResult, err error) (*models.AuthResult, error) {
	a.release(sess, models.AuthStatus{
		State:   result.State,
		Profile: result.Profile,
		Message: result.Message,
	})
	return result, err
}

func (a *Authorizer) fail(sess *session, msg string) (*models.AuthResult, error) {
	slog.Warn("authorization failed", "error", msg)
	return a.finish(sess, &models.AuthResult{State: models.AuthStateFailed, Message: msg}, errors.New(msg))
}

func (a *Authorizer) cancelled(sess *session) (*models.AuthResult, error) {
	return a.finish(sess, &models.AuthResult{State: models.AuthStateCancelled, Message: "Cancelled by user"}, nil)
}

func (a *Authorizer) kill(cmd *exec.Cmd, done <-chan error) {
	if err := cmd.Process.Kill(); err != nil {
		slog.Debug("failed to kill rclone authorize", "error", err)
	}
	<-done
}

// watchForURL scans stderr for the marker and hands the link over once.
// It keeps draining so the process never blocks on a full pipe.
func (a *Authorizer) watchForURL(stderr io.Reader, sess *session, onURL func(string)) {
	var once sync.Once
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, a.config.URLMarker)
		if idx < 0 {
			slog.Debug("rclone authorize", "line", line)
			continue
		}

		url := strings.TrimSpace(line[idx+len(a.config.URLMarker):])
		if url == "" {
			continue
		}
		once.Do(func() {
			sess.setURL(url)
			if onURL != nil {
				onURL(url)
			}
		})
	}
	_, _ = io.Copy(io.Discard, stderr)
}
