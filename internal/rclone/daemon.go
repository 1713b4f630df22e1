package rclone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"karsync/internal/models"
	"karsync/internal/process"
)

const (
	DefaultAddr            = "localhost:5572"
	DefaultStartupAttempts = 20
	DefaultStartupInterval = 500 * time.Millisecond
)

// DaemonConfig describes how to launch `rclone rcd`
type DaemonConfig struct {
	Binary          string
	Addr            string
	LogFile         string
	LogLevel        string
	StartupAttempts int
	StartupInterval time.Duration
}

// Daemon starts and stops the rclone rc server on demand
type Daemon struct {
	client   *Client
	config   DaemonConfig
	registry *process.Registry

	// newCommand builds the rcd command; replaced in tests
	newCommand func(name string, args ...string) *exec.Cmd

	mu       sync.Mutex
	starting *startup
}

func NewDaemon(client *Client, cfg DaemonConfig, registry *process.Registry) *Daemon {
	if cfg.Binary == "" {
		cfg.Binary = "rclone"
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.StartupAttempts <= 0 {
		cfg.StartupAttempts = DefaultStartupAttempts
	}
	if cfg.StartupInterval <= 0 {
		cfg.StartupInterval = DefaultStartupInterval
	}
	if registry == nil {
		registry = process.NewRegistry()
	}

	return &Daemon{
		client:     client,
		config:     cfg,
		registry:   registry,
		newCommand: exec.Command,
	}
}

func (d *Daemon) Client() *Client {
	return d.client
}

func (d *Daemon) LogFile() string {
	return d.config.LogFile
}

// IsRunning probes core/pid
func (d *Daemon) IsRunning(ctx context.Context) bool {
	return d.client.Ping(ctx) == nil
}

// startup is one in-flight spawn that concurrent callers wait on
type startup struct {
	done chan struct{}
	err  error
}

// EnsureRunning starts the daemon unless it already answers. Concurrent
// callers share a single spawn. The log file is emptied before a fresh
// start.
func (d *Daemon) EnsureRunning(ctx context.Context) error {
	if d.IsRunning(ctx) {
		return nil
	}

	d.mu.Lock()
	if s := d.starting; s != nil {
		d.mu.Unlock()
		select {
		case <-s.done:
			return s.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s := &startup{done: make(chan struct{})}
	d.starting = s
	d.mu.Unlock()

	s.err = d.start(ctx)

	d.mu.Lock()
	d.starting = nil
	d.mu.Unlock()
	close(s.done)

	return s.err
}

// start spawns rcd and waits for it; only the startup owner calls it
func (d *Daemon) start(ctx context.Context) error {
	// A startup that finished since the first check may already be up
	if d.IsRunning(ctx) {
		return nil
	}

	if err := d.clearLog(); err != nil {
		return err
	}

	args := []string{
		"rcd",
		"--rc-no-auth",
		"--rc-addr=" + d.config.Addr,
		"--log-file", d.config.LogFile,
		"--log-level", d.config.LogLevel,
	}

	cmd := d.newCommand(d.config.Binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn rclone rcd: %w", err)
	}
	d.registry.Add(cmd.Process)

	// Reap the child whenever it exits
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("rclone rcd exited", "error", err)
		}
	}()

	slog.Info("started rclone rc server",
		"pid", cmd.Process.Pid,
		"addr", d.config.Addr,
		"log_file", d.config.LogFile)

	return d.WaitForServer(ctx)
}

// WaitForServer polls until the daemon answers or the attempts run out
func (d *Daemon) WaitForServer(ctx context.Context) error {
	return d.waitFor(ctx, true, models.ErrServerUnavailable)
}

// Stop asks a running daemon to quit and waits for it to go away. Any job
// still running is observed by its poller as stopped externally.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	s := d.starting
	d.mu.Unlock()

	// Let an in-flight startup settle first
	if s != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !d.IsRunning(ctx) {
		return nil
	}

	if err := d.client.Quit(ctx); err != nil && !IsServerGone(err) {
		return fmt.Errorf("failed to stop rclone: %w", err)
	}

	slog.Info("requested rclone rc server shutdown")
	return d.waitFor(ctx, false, errors.New("timed out waiting for rclone rc server to stop"))
}

func (d *Daemon) waitFor(ctx context.Context, running bool, timeoutErr error) error {
	for i := 0; i < d.config.StartupAttempts; i++ {
		if d.IsRunning(ctx) == running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.config.StartupInterval):
		}
	}
	return timeoutErr
}

func (d *Daemon) clearLog() error {
	if d.config.LogFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.config.LogFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.WriteFile(d.config.LogFile, nil, 0644); err != nil {
		return fmt.Errorf("failed to clear rclone log: %w", err)
	}
	return nil
}
