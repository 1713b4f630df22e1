package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"karsync/internal/interfaces"
	"karsync/internal/models"
)

const DefaultStatsInterval = 2 * time.Second

// ProgressMonitor polls /core/stats while transfers run and keeps the
// latest snapshot for registered jobs
type ProgressMonitor struct {
	client   interfaces.RCloneClient
	interval time.Duration

	mu       sync.RWMutex
	jobs     map[int64]struct{} // registered rclone job ids
	snapshot *models.LiveStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProgressMonitor creates a new progress monitor
func NewProgressMonitor(client interfaces.RCloneClient, interval time.Duration) *ProgressMonitor {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &ProgressMonitor{
		client:   client,
		interval: interval,
		jobs:     make(map[int64]struct{}),
	}
}

// Start begins polling for progress updates
func (pm *ProgressMonitor) Start(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.cancel != nil {
		slog.Warn("progress monitor already started")
		return
	}

	pm.ctx, pm.cancel = context.WithCancel(ctx)

	pm.wg.Add(1)
	go pm.pollLoop()

	slog.Info("progress monitor started")
}

// Stop stops the progress monitor
func (pm *ProgressMonitor) Stop() {
	pm.mu.Lock()
	if pm.cancel == nil {
		pm.mu.Unlock()
		return
	}

	pm.cancel()
	pm.cancel = nil
	pm.mu.Unlock()

	pm.wg.Wait()
	slog.Info("progress monitor stopped")
}

// Register adds a job to be monitored
func (pm *ProgressMonitor) Register(rcloneJobID int64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.jobs[rcloneJobID] = struct{}{}
	slog.Debug("registered job for progress monitoring", "rclone_job_id", rcloneJobID)
}

// Unregister removes a job from monitoring. The snapshot is dropped once
// nothing is monitored.
func (pm *ProgressMonitor) Unregister(rcloneJobID int64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	delete(pm.jobs, rcloneJobID)
	if len(pm.jobs) == 0 {
		pm.snapshot = nil
	}
	slog.Debug("unregistered job from progress monitoring", "rclone_job_id", rcloneJobID)
}

// Snapshot returns a copy of the latest stats, or nil when idle
func (pm *ProgressMonitor) Snapshot() *models.LiveStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.snapshot == nil {
		return nil
	}
	cp := *pm.snapshot
	cp.Transferring = append([]models.TransferringFile(nil), pm.snapshot.Transferring...)
	return &cp
}

// pollLoop continuously polls /core/stats
func (pm *ProgressMonitor) pollLoop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.ctx.Done():
			return

		case <-ticker.C:
			if !pm.hasJobs() {
				continue
			}
			if err := pm.update(pm.ctx); err != nil {
				slog.Debug("failed to update transfer stats", "error", err)
			}
		}
	}
}

func (pm *ProgressMonitor) hasJobs() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.jobs) > 0
}

// update fetches /core/stats and keeps the files of registered jobs
func (pm *ProgressMonitor) update(ctx context.Context) error {
	stats, err := pm.client.GetCoreStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get core stats: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.jobs) == 0 {
		return nil
	}

	files := make([]models.TransferringFile, 0, len(stats.Transferring))
	for _, tf := range stats.Transferring {
		// Group format: "job/497670"
		rcloneJobID := extractJobIDFromGroup(tf.Group)
		if _, tracked := pm.jobs[rcloneJobID]; !tracked {
			continue
		}
		tf.JobID = rcloneJobID
		files = append(files, tf)
	}
	stats.Transferring = files
	pm.snapshot = stats

	slog.Debug("updated transfer stats",
		"bytes", stats.Bytes,
		"total_bytes", stats.TotalBytes,
		"speed", stats.Speed,
		"transferring", len(files))

	return nil
}

// extractJobIDFromGroup extracts the rclone job ID from a group string like "job/497670"
func extractJobIDFromGroup(group string) int64 {
	parts := strings.Split(group, "/")
	if len(parts) != 2 || parts[0] != "job" {
		return 0
	}

	jobID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}

	return jobID
}
