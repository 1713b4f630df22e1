package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"karsync/internal/interfaces"
	"karsync/internal/models"
	"karsync/internal/request"
)

// MessageDeletionsDeclined is recorded when a sync stops at its preview
const MessageDeletionsDeclined = "Sync cancelled: deletions not confirmed"

// TransferDeps are the collaborators of a TransferService. Notifier may be nil.
type TransferDeps struct {
	Daemon     interfaces.DaemonManager
	Catalog    interfaces.RemoteCatalog
	Runner     interfaces.JobRunner
	Previewer  interfaces.Previewer
	Builder    *request.Builder
	Monitor    interfaces.StatsMonitor
	Gate       interfaces.TransferGate
	Repository interfaces.TransferRepository
	Notifier   interfaces.Notifier
}

// TransferService runs previews and downloads end to end: validation,
// admission, backend submission, history and notifications.
type TransferService struct {
	daemon     interfaces.DaemonManager
	catalog    interfaces.RemoteCatalog
	runner     interfaces.JobRunner
	previewer  interfaces.Previewer
	builder    *request.Builder
	monitor    interfaces.StatsMonitor
	gate       interfaces.TransferGate
	repository interfaces.TransferRepository
	notifier   interfaces.Notifier

	// background downloads started through StartDownload
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTransferService(deps TransferDeps) *TransferService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TransferService{
		daemon:     deps.Daemon,
		catalog:    deps.Catalog,
		runner:     deps.Runner,
		previewer:  deps.Previewer,
		builder:    deps.Builder,
		monitor:    deps.Monitor,
		gate:       deps.Gate,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Shutdown stops waiting on background downloads. Jobs already submitted
// keep running on the daemon.
func (s *TransferService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// RecoverInterrupted fails history entries left running by a previous process
func (s *TransferService) RecoverInterrupted() error {
	_, err := s.repository.MarkRunningInterrupted()
	return err
}

// PruneHistory drops finished transfers older than retention. A
// non-positive retention keeps everything.
func (s *TransferService) PruneHistory(retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.repository.CleanupOldTransfers(time.Now().Add(-retention))
}

// Preview reports what a sync of params would delete without touching the
// destination
func (s *TransferService) Preview(ctx context.Context, params models.TransferParams) (*models.DryRunResult, error) {
	req, release, err := s.admit(ctx, params)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.runPreview(ctx, req)
}

// Download transfers params in the foreground. A sync is previewed first and
// only proceeds past pending deletions when confirm agrees.
func (s *TransferService) Download(ctx context.Context, params models.TransferParams, confirm models.ConfirmFunc) (*models.DownloadResult, error) {
	req, release, err := s.admit(ctx, params)
	if err != nil {
		return nil, err
	}
	defer release()

	record := models.NewTransferRecord(models.TransferKindDownload, req)
	if err := s.repository.CreateTransfer(record); err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	return s.execute(ctx, req, record, confirm)
}

// StartDownload validates params and admits the transfer, then runs it in
// the background. The returned record is a snapshot taken at admission.
func (s *TransferService) StartDownload(ctx context.Context, params models.TransferParams, confirmDeletes bool) (*models.TransferRecord, error) {
	req, release, err := s.admit(ctx, params)
	if err != nil {
		return nil, err
	}

	record := models.NewTransferRecord(models.TransferKindDownload, req)
	if err := s.repository.CreateTransfer(record); err != nil {
		release()
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}
	snapshot := *record

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()

		confirm := func(*models.DryRunResult) bool { return confirmDeletes }
		if _, err := s.execute(s.ctx, req, record, confirm); err != nil {
			slog.Error("background download failed", "transfer_id", record.ID, "error", err)
		}
	}()

	return &snapshot, nil
}

// StopDaemon shuts the rc server down. A download in flight ends as cancelled.
func (s *TransferService) StopDaemon(ctx context.Context) error {
	return s.daemon.Stop(ctx)
}

func (s *TransferService) ListRemotes(ctx context.Context) ([]string, error) {
	return s.catalog.Remotes(ctx)
}

// ListFiles lists the shared folder, marking what selection would transfer
func (s *TransferService) ListFiles(ctx context.Context, source, remote string, selection models.Selection) ([]models.RemoteFile, error) {
	files, err := s.catalog.ListFiles(ctx, source, remote)
	if err != nil {
		return nil, err
	}
	request.MarkSelected(files, selection)
	return files, nil
}

func (s *TransferService) GetTransfer(id int64) (*models.TransferRecord, error) {
	return s.repository.GetTransfer(id)
}

func (s *TransferService) GetTransfers(query models.TransferQuery) ([]*models.TransferRecord, error) {
	return s.repository.GetTransfers(query)
}

func (s *TransferService) GetTransferSummary() (*models.TransferSummary, error) {
	return s.repository.GetTransferSummary()
}

func (s *TransferService) LiveStats() *models.LiveStats {
	return s.monitor.Snapshot()
}

func (s *TransferService) ResourceStatus(destination string) interfaces.ResourceStatus {
	return s.gate.GetResourceStatus(destination)
}

// admit validates params, makes sure the identity is known to a running
// daemon and takes the transfer slot
func (s *TransferService) admit(ctx context.Context, params models.TransferParams) (*models.TransferRequest, func(), error) {
	req, err := request.New(params)
	if err != nil {
		return nil, nil, err
	}

	if err := s.daemon.EnsureRunning(ctx); err != nil {
		return nil, nil, err
	}

	registered, err := s.catalog.IsRegistered(ctx, req.Remote)
	if err != nil {
		return nil, nil, err
	}
	if !registered {
		return nil, nil, models.ErrUnknownIdentity
	}

	release, err := s.gate.Acquire(req.Destination)
	if err != nil {
		return nil, nil, err
	}
	return req, release, nil
}

func (s *TransferService) runPreview(ctx context.Context, req *models.TransferRequest) (*models.DryRunResult, error) {
	record := models.NewTransferRecord(models.TransferKindPreview, req)
	if err := s.repository.CreateTransfer(record); err != nil {
		return nil, fmt.Errorf("failed to record preview: %w", err)
	}

	result, err := s.previewer.Preview(ctx, req)
	if err != nil {
		record.MarkFailed(err.Error())
		s.saveRecord(record)
		return nil, err
	}

	outcome := result.Outcome
	if outcome == nil {
		outcome = &models.JobOutcome{Stopped: result.Stopped, Message: result.Summary}
	}
	record.DeletedPaths = models.PathList(result.DeletedFiles)
	record.MarkFinished(outcome)
	s.saveRecord(record)

	return result, nil
}

// execute runs an admitted download to its end, keeping record current
func (s *TransferService) execute(ctx context.Context, req *models.TransferRequest, record *models.TransferRecord, confirm models.ConfirmFunc) (*models.DownloadResult, error) {
	result := &models.DownloadResult{Transfer: record}

	if req.Mode.IsSync() {
		preview, err := s.runPreview(ctx, req)
		if err != nil {
			return nil, s.fail(record, err)
		}
		result.Preview = preview

		if preview.Stopped {
			record.MarkCancelled(preview.Summary)
			s.saveRecord(record)
			s.notifyCompleted(record)
			return result, nil
		}

		if preview.WouldDelete {
			record.DeletedPaths = models.PathList(preview.DeletedFiles)
			s.notifyPendingDeletions(record, preview.DeletedFiles)
			if confirm == nil || !confirm(preview) {
				slog.Info("sync declined at preview", "transfer_id", record.ID, "would_delete", len(preview.DeletedFiles))
				record.MarkCancelled(MessageDeletionsDeclined)
				s.saveRecord(record)
				result.Declined = true
				return result, nil
			}
		}
	}

	body, paths, err := s.builder.Build(req)
	if err != nil {
		return nil, s.fail(record, err)
	}
	record.BackupPath = paths.BackupPath

	jobID, err := s.runner.Submit(ctx, req.Mode.Endpoint(), body)
	if err != nil {
		return nil, s.fail(record, err)
	}
	record.MarkSubmitted(jobID)
	s.saveRecord(record)

	s.monitor.Register(jobID)
	defer s.monitor.Unregister(jobID)

	outcome, err := s.runner.Await(ctx, jobID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("stopped waiting on rclone job, it keeps running on the daemon",
				"transfer_id", record.ID, "job_id", jobID)
		}
		return nil, s.fail(record, err)
	}

	record.MarkFinished(outcome)
	s.saveRecord(record)
	s.notifyCompleted(record)

	slog.Info("download finished",
		"transfer_id", record.ID,
		"status", record.Status,
		"stats", outcome.Summary())

	return result, nil
}

func (s *TransferService) fail(record *models.TransferRecord, err error) error {
	record.MarkFailed(err.Error())
	s.saveRecord(record)
	if s.notifier != nil {
		if nerr := s.notifier.NotifyTransferFailed(record); nerr != nil {
			slog.Warn("failed to send failure notification", "transfer_id", record.ID, "error", nerr)
		}
	}
	return err
}

// saveRecord persists record; history is best effort once a transfer started
func (s *TransferService) saveRecord(record *models.TransferRecord) {
	if err := s.repository.UpdateTransfer(record); err != nil {
		slog.Warn("failed to update transfer history", "transfer_id", record.ID, "error", err)
	}
}

func (s *TransferService) notifyCompleted(record *models.TransferRecord) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyTransferCompleted(record); err != nil {
		slog.Warn("failed to send completion notification", "transfer_id", record.ID, "error", err)
	}
}

func (s *TransferService) notifyPendingDeletions(record *models.TransferRecord, deleted []string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPendingDeletions(record, deleted); err != nil {
		slog.Warn("failed to send deletion notification", "transfer_id", record.ID, "error", err)
	}
}
