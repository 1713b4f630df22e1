package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"karsync/internal/auth"
	"karsync/internal/config"
	"karsync/internal/drive"
	"karsync/internal/executor"
	"karsync/internal/gatekeeper"
	"karsync/internal/logtail"
	"karsync/internal/notifications"
	"karsync/internal/process"
	"karsync/internal/rclone"
	"karsync/internal/repository"
	"karsync/internal/request"
	"karsync/internal/services"

	"github.com/gofrs/flock"
)

const lockFileName = "karsync.lock"

var errAlreadyRunning = errors.New("another karsync instance is running")

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	registry  *process.Registry
	daemon    *rclone.Daemon
	monitor   *executor.ProgressMonitor
	repo      *repository.Repository
	transfers *services.TransferService
	auth      *services.AuthService
}

func loadConfig(flagPath string) (*config.Config, error) {
	configPath := config.ResolvePath(flagPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("configuration loaded", "config_path", configPath)
	return cfg, nil
}

// withApp wires the application and runs fn. An exclusive app holds the
// instance lock: only one process may own the rclone daemon and the
// authorization session at a time.
func withApp(cfg *config.Config, exclusive bool, fn func(a *app) error) error {
	if exclusive {
		unlock, err := acquireInstanceLock()
		if err != nil {
			return err
		}
		defer unlock()
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if exclusive {
		// nothing else can be running a transfer now
		if err := a.transfers.RecoverInterrupted(); err != nil {
			slog.Warn("failed to recover interrupted transfers", "error", err)
		}
		if _, err := a.transfers.PruneHistory(cfg.GetDatabase().Retention); err != nil {
			slog.Warn("failed to prune transfer history", "error", err)
		}
	}

	return fn(a)
}

func acquireInstanceLock() (func(), error) {
	dir, err := config.AppDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create app data dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, errAlreadyRunning
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release instance lock", "error", err)
		}
	}, nil
}

func newApp(cfg *config.Config) (*app, error) {
	repo, err := repository.New(cfg.GetDatabase().Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Debug("database initialized", "path", cfg.GetDatabase().Path)

	rcloneCfg := cfg.GetRClone()
	registry := process.NewRegistry()
	client := rclone.NewClient(rcloneCfg.BaseURL(), rcloneCfg.RequestTimeout)
	daemon := rclone.NewDaemon(client, rclone.DaemonConfig{
		Binary:          rcloneCfg.Binary,
		Addr:            rcloneCfg.DaemonAddr,
		LogFile:         rcloneCfg.LogFile,
		LogLevel:        rcloneCfg.LogLevel,
		StartupAttempts: rcloneCfg.StartupAttempts,
		StartupInterval: rcloneCfg.StartupInterval,
	}, registry)

	archive := cfg.GetArchive()
	builder := request.NewBuilder(archive.SubfolderName, archive.BackupPrefix)
	runner := executor.NewRunner(client, rcloneCfg.PollInterval)
	analyzer := executor.NewDryRunAnalyzer(runner, builder, logtail.NewTracker(rcloneCfg.LogFile))
	catalog := drive.NewCatalog(client, daemon)

	monitor := executor.NewProgressMonitor(client, rcloneCfg.StatsInterval)
	monitor.Start(context.Background())

	transfers := services.NewTransferService(services.TransferDeps{
		Daemon:     daemon,
		Catalog:    catalog,
		Runner:     runner,
		Previewer:  analyzer,
		Builder:    builder,
		Monitor:    monitor,
		Gate:       gatekeeper.New(cfg),
		Repository: repo,
		Notifier:   notifications.NewPushoverNotifier(cfg),
	})

	authCfg := cfg.GetAuth()
	authorizer := auth.NewAuthorizer(auth.Config{
		Binary:      rcloneCfg.Binary,
		Provider:    authCfg.Provider,
		ProfileName: authCfg.ProfileName,
		URLMarker:   authCfg.URLMarker,
	}, catalog, registry)

	return &app{
		cfg:       cfg,
		registry:  registry,
		daemon:    daemon,
		monitor:   monitor,
		repo:      repo,
		transfers: transfers,
		auth:      services.NewAuthService(authorizer),
	}, nil
}

// close unwinds in reverse order of construction. Every subprocess this
// process started, the rclone daemon included, is killed.
func (a *app) close() {
	a.auth.Shutdown()
	a.transfers.Shutdown()
	a.monitor.Stop()

	if err := a.registry.KillAll(); err != nil {
		slog.Warn("failed to kill subprocesses", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}
