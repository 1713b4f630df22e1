package executor

import (
	"context"
	"fmt"
	"log/slog"

	"karsync/internal/logtail"
	"karsync/internal/models"
	"karsync/internal/request"
)

// DryRunAnalyzer previews what a sync would delete. The daemon's counters
// do not name files, so the paths come from its log.
type DryRunAnalyzer struct {
	runner  *Runner
	builder *request.Builder
	tracker *logtail.Tracker
}

func NewDryRunAnalyzer(runner *Runner, builder *request.Builder, tracker *logtail.Tracker) *DryRunAnalyzer {
	return &DryRunAnalyzer{
		runner:  runner,
		builder: builder,
		tracker: tracker,
	}
}

// Preview runs req as a dry-run sync without backup, whatever mode the
// caller asked for. Sync-only flags of a sync request are kept.
func (a *DryRunAnalyzer) Preview(ctx context.Context, req *models.TransferRequest) (*models.DryRunResult, error) {
	preview := *req
	if !preview.Mode.IsSync() {
		preview.Mode = models.SyncMode(false, false)
	}
	preview.Backup = false

	body, _, err := a.builder.Build(&preview)
	if err != nil {
		return nil, err
	}
	body = body.WithDryRun()

	// The offset must be taken before submission so lines of earlier runs
	// are never attributed to this one.
	offset, err := a.tracker.CurrentOffset()
	if err != nil {
		return nil, err
	}

	outcome, err := a.runner.Run(ctx, models.EndpointSync, body)
	if err != nil {
		return nil, err
	}

	if outcome.Stopped {
		return &models.DryRunResult{
			DeletedFiles: []string{},
			Summary:      outcome.Message,
			Stopped:      true,
			Outcome:      outcome,
		}, nil
	}

	lines, err := a.tracker.LinesSince(offset)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	deleted, err := ParseDeletedFiles(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rclone log: %w", err)
	}

	result := &models.DryRunResult{
		WouldDelete:  outcome.Deletes > 0 || len(deleted) > 0,
		DeletedFiles: deleted,
		Summary:      outcome.Summary(),
		Outcome:      outcome,
	}

	slog.Info("dry run finished",
		"job_id", outcome.JobID,
		"would_delete", result.WouldDelete,
		"deleted_files", len(deleted),
		"stats", result.Summary)

	return result, nil
}
