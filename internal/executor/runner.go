package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"karsync/internal/interfaces"
	"karsync/internal/models"
	"karsync/internal/rclone"
)

const DefaultPollInterval = time.Second

// Messages carried by a stopped outcome
const (
	MessageServerStopped = "Download cancelled (server stopped)"
	MessageJobVanished   = "Download cancelled"
)

// Runner submits transfer jobs to the rc daemon and polls them until they
// finish. Abandoning the context stops polling only; the job keeps running
// on the daemon.
type Runner struct {
	client       interfaces.RCloneClient
	pollInterval time.Duration
}

func NewRunner(client interfaces.RCloneClient, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Runner{
		client:       client,
		pollInterval: pollInterval,
	}
}

// Run is Submit followed by Await
func (r *Runner) Run(ctx context.Context, endpoint string, body models.SyncRequest) (*models.JobOutcome, error) {
	jobID, err := r.Submit(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	return r.Await(ctx, jobID)
}

// Submit posts the transfer. Any failure is a *models.SubmissionError; the
// daemon may still have started the job in that case.
func (r *Runner) Submit(ctx context.Context, endpoint string, body models.SyncRequest) (int64, error) {
	jobID, err := r.client.StartJob(ctx, endpoint, body)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &models.SubmissionError{Message: errorText(err)}
	}

	slog.Info("submitted rclone job",
		"job_id", jobID,
		"endpoint", endpoint,
		"src_fs", body.SrcFs,
		"dst_fs", body.DstFs)
	return jobID, nil
}

// Await polls jobID until it reaches a terminal state. A daemon that went
// away or forgot the job yields a stopped outcome, not an error.
func (r *Runner) Await(ctx context.Context, jobID int64) (*models.JobOutcome, error) {
	for {
		status, err := r.client.GetJobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return r.classifyPollError(jobID, err)
		}

		if status.Finished {
			if status.Error != "" {
				slog.Warn("rclone job failed", "job_id", jobID, "error", status.Error)
				return nil, &models.JobFailedError{Message: status.Error}
			}
			return r.collectStats(ctx, jobID), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

func (r *Runner) classifyPollError(jobID int64, err error) (*models.JobOutcome, error) {
	switch {
	case rclone.IsServerGone(err):
		slog.Info("rclone server went away while polling", "job_id", jobID, "error", err)
		return &models.JobOutcome{JobID: jobID, Stopped: true, Message: MessageServerStopped}, nil
	case rclone.IsJobNotFound(err):
		// Also what a stale job id looks like; both end the same way
		slog.Info("rclone job no longer exists", "job_id", jobID)
		return &models.JobOutcome{JobID: jobID, Stopped: true, Message: MessageJobVanished}, nil
	default:
		return nil, &models.StatusCheckError{Message: errorText(err)}
	}
}

// collectStats reads the job's counters. A failed stats query leaves them
// at zero.
func (r *Runner) collectStats(ctx context.Context, jobID int64) *models.JobOutcome {
	outcome := &models.JobOutcome{JobID: jobID}

	stats, err := r.client.GetJobStats(ctx, jobID)
	if err != nil {
		slog.Warn("failed to get job stats", "job_id", jobID, "error", err)
		return outcome
	}

	outcome.Checks = stats.Checks
	outcome.Transfers = stats.Transfers
	outcome.Deletes = stats.Deletes
	outcome.Errors = stats.Errors

	slog.Info("rclone job finished", "job_id", jobID, "stats", outcome.Summary())
	return outcome
}

// errorText prefers the daemon's own message over our wrapping
func errorText(err error) string {
	var httpErr *rclone.HTTPError
	if errors.As(err, &httpErr) && httpErr.Body != "" {
		return httpErr.Message()
	}
	return err.Error()
}
