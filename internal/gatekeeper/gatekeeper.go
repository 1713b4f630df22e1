package gatekeeper

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"karsync/internal/config"
	"karsync/internal/interfaces"
	"karsync/internal/models"
)

// Gatekeeper enforces the pre-submission rules: a single transfer in flight
// and enough free space on the destination volume.
type Gatekeeper struct {
	config *config.Config

	// freeBytes reports the space available at path; replaced in tests
	freeBytes func(path string) (uint64, error)

	mu     sync.Mutex
	active bool
}

func New(cfg *config.Config) *Gatekeeper {
	return &Gatekeeper{
		config:    cfg,
		freeBytes: diskFree,
	}
}

// Acquire admits a transfer to destination or explains why it cannot start
func (g *Gatekeeper) Acquire(destination string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return nil, models.ErrTransferInProgress
	}

	minFree := g.config.GetGatekeeper().MinFreeBytes
	if minFree > 0 {
		free, err := g.destinationFree(destination)
		if err != nil {
			// An unreadable volume is not a reason to refuse the transfer
			slog.Warn("unable to verify destination free space", "destination", destination, "error", err)
		} else if free < minFree {
			return nil, fmt.Errorf("%w: %d bytes free, %d required", models.ErrInsufficientSpace, free, minFree)
		}
	}

	g.active = true
	slog.Debug("transfer admitted", "destination", destination)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.active = false
			g.mu.Unlock()
		})
	}, nil
}

// GetResourceStatus returns current resource status
func (g *Gatekeeper) GetResourceStatus(destination string) interfaces.ResourceStatus {
	g.mu.Lock()
	active := g.active
	g.mu.Unlock()

	minFree := g.config.GetGatekeeper().MinFreeBytes
	status := interfaces.ResourceStatus{
		TransferActive:     active,
		DiskSpaceAvailable: true,
		MinFreeBytes:       minFree,
	}

	if destination == "" {
		return status
	}
	free, err := g.destinationFree(destination)
	if err != nil {
		slog.Debug("failed to read destination free space", "destination", destination, "error", err)
		return status
	}
	status.DestinationFree = free
	status.DiskSpaceAvailable = free >= minFree
	return status
}

// destinationFree measures the nearest existing ancestor, since the
// destination folder is usually created by the transfer itself.
func (g *Gatekeeper) destinationFree(destination string) (uint64, error) {
	path, err := nearestExisting(destination)
	if err != nil {
		return 0, err
	}
	return g.freeBytes(path)
}

func nearestExisting(path string) (string, error) {
	path = filepath.Clean(path)
	for {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		path = parent
	}
}
