package executor

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karsync/internal/models"
	"karsync/internal/rclone"
	"karsync/internal/testutil"
)

func newTestRunner(t *testing.T) (*Runner, *testutil.FakeRC) {
	t.Helper()
	fake := testutil.NewFakeRC(t)
	client := rclone.NewClient(fake.URL(), 5*time.Second)
	return NewRunner(client, 5*time.Millisecond), fake
}

func copyBody() models.SyncRequest {
	return models.SyncRequest{Async: true, SrcFs: "gdrive,root_folder_id=abc:", DstFs: "/dst"}
}

func TestRunner_Success(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{
		PollsUntilFinished: 2,
		Stats:              map[string]int64{"checks": 5, "transfers": 3, "deletes": 0, "errors": 0},
	})

	outcome, err := runner.Run(context.Background(), models.EndpointCopy, copyBody())
	require.NoError(t, err)
	assert.False(t, outcome.Stopped)
	assert.Equal(t, int64(1), outcome.JobID)
	assert.Equal(t, int64(5), outcome.Checks)
	assert.Equal(t, int64(3), outcome.Transfers)
	assert.Equal(t, int64(0), outcome.Deletes)
	assert.Equal(t, int64(0), outcome.Errors)

	assert.Len(t, fake.Requests("/sync/copy"), 1)
	assert.Len(t, fake.Requests("/job/status"), 3)

	stats := fake.Requests("/core/stats")
	require.Len(t, stats, 1)
	assert.Equal(t, "job/1", stats[0].Body["group"])
}

func TestRunner_MissingStatsDefaultToZero(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{Stats: map[string]int64{"transfers": 2}})

	outcome, err := runner.Run(context.Background(), models.EndpointSync, copyBody())
	require.NoError(t, err)
	assert.Equal(t, int64(2), outcome.Transfers)
	assert.Equal(t, int64(0), outcome.Checks)
	assert.Equal(t, "Checks: 0, Transfers: 2, Deletes: 0, Errors: 0", outcome.Summary())
}

func TestRunner_JobFailed(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{PollsUntilFinished: 1, Error: "directory not found"})

	outcome, err := runner.Run(context.Background(), models.EndpointCopy, copyBody())
	assert.Nil(t, outcome)

	var jobErr *models.JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "directory not found", jobErr.Message)
	assert.Empty(t, fake.Requests("/core/stats"), "no stats for a failed job")
}

func TestRunner_SubmissionFailed(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.FailSubmissions(http.StatusBadRequest, "didn't find section in config file")

	_, err := runner.Run(context.Background(), models.EndpointCopy, copyBody())

	var subErr *models.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "didn't find section in config file", subErr.Message)
	assert.Empty(t, fake.Requests("/job/status"))
}

func TestRunner_SubmissionWithoutJobID(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.OmitJobID()

	_, err := runner.Run(context.Background(), models.EndpointCopy, copyBody())

	var subErr *models.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "no jobid returned", subErr.Message)
}

func TestRunner_JobNotFoundIsCancellation(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{NotFound: true})

	outcome, err := runner.Run(context.Background(), models.EndpointSync, copyBody())
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)
	assert.Equal(t, MessageJobVanished, outcome.Message)
	assert.Zero(t, outcome.Transfers)
}

func TestRunner_ServerGoneIsCancellation(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{PollsUntilFinished: 1000})

	jobID, err := runner.Submit(context.Background(), models.EndpointCopy, copyBody())
	require.NoError(t, err)

	// Daemon quits while the job runs
	fake.Server.Close()

	outcome, err := runner.Await(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)
	assert.Equal(t, MessageServerStopped, outcome.Message)
	assert.Equal(t, jobID, outcome.JobID)
}

func TestRunner_SubmitToStoppedServer(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.Server.Close()

	_, err := runner.Submit(context.Background(), models.EndpointCopy, copyBody())
	var subErr *models.SubmissionError
	require.ErrorAs(t, err, &subErr)
}

func TestRunner_ContextAbandonment(t *testing.T) {
	runner, fake := newTestRunner(t)
	fake.QueueJob(testutil.FakeJob{PollsUntilFinished: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := runner.Run(ctx, models.EndpointCopy, copyBody())
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_DefaultPollInterval(t *testing.T) {
	runner := NewRunner(nil, 0)
	assert.Equal(t, time.Second, runner.pollInterval)
}

func TestRunner_ClassifyPollError(t *testing.T) {
	runner := NewRunner(nil, 0)

	_, err := runner.classifyPollError(3, &rclone.HTTPError{StatusCode: 500, Body: "internal failure"})
	var statusErr *models.StatusCheckError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "internal failure", statusErr.Message)
	assert.Equal(t, "job status check failed: internal failure", err.Error())
}
