package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"karsync/internal/interfaces"
	"karsync/internal/models"
)

type mockTransferService struct {
	mock.Mock
}

func newMockTransferService(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockTransferService {
	m := &mockTransferService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockTransferService) Preview(ctx context.Context, params models.TransferParams) (*models.DryRunResult, error) {
	args := m.Called(ctx, params)
	result, _ := args.Get(0).(*models.DryRunResult)
	return result, args.Error(1)
}

func (m *mockTransferService) Download(ctx context.Context, params models.TransferParams, confirm models.ConfirmFunc) (*models.DownloadResult, error) {
	args := m.Called(ctx, params, confirm)
	result, _ := args.Get(0).(*models.DownloadResult)
	return result, args.Error(1)
}

func (m *mockTransferService) StartDownload(ctx context.Context, params models.TransferParams, confirmDeletes bool) (*models.TransferRecord, error) {
	args := m.Called(ctx, params, confirmDeletes)
	record, _ := args.Get(0).(*models.TransferRecord)
	return record, args.Error(1)
}

func (m *mockTransferService) StopDaemon(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTransferService) ListRemotes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	remotes, _ := args.Get(0).([]string)
	return remotes, args.Error(1)
}

func (m *mockTransferService) ListFiles(ctx context.Context, source, remote string, selection models.Selection) ([]models.RemoteFile, error) {
	args := m.Called(ctx, source, remote, selection)
	files, _ := args.Get(0).([]models.RemoteFile)
	return files, args.Error(1)
}

func (m *mockTransferService) GetTransfer(id int64) (*models.TransferRecord, error) {
	args := m.Called(id)
	record, _ := args.Get(0).(*models.TransferRecord)
	return record, args.Error(1)
}

func (m *mockTransferService) GetTransfers(query models.TransferQuery) ([]*models.TransferRecord, error) {
	args := m.Called(query)
	records, _ := args.Get(0).([]*models.TransferRecord)
	return records, args.Error(1)
}

func (m *mockTransferService) GetTransferSummary() (*models.TransferSummary, error) {
	args := m.Called()
	summary, _ := args.Get(0).(*models.TransferSummary)
	return summary, args.Error(1)
}

func (m *mockTransferService) LiveStats() *models.LiveStats {
	stats, _ := m.Called().Get(0).(*models.LiveStats)
	return stats
}

func (m *mockTransferService) ResourceStatus(destination string) interfaces.ResourceStatus {
	return m.Called(destination).Get(0).(interfaces.ResourceStatus)
}

type mockAuthService struct {
	mock.Mock
}

func newMockAuthService(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockAuthService {
	m := &mockAuthService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockAuthService) Start(ctx context.Context) (*models.AuthStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*models.AuthStatus)
	return status, args.Error(1)
}

func (m *mockAuthService) Authorize(ctx context.Context, onURL func(url string)) (*models.AuthResult, error) {
	args := m.Called(ctx, onURL)
	result, _ := args.Get(0).(*models.AuthResult)
	return result, args.Error(1)
}

func (m *mockAuthService) Cancel() bool {
	return m.Called().Bool(0)
}

func (m *mockAuthService) Status() *models.AuthStatus {
	status, _ := m.Called().Get(0).(*models.AuthStatus)
	return status
}
