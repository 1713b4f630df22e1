package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karsync/internal/models"
	"karsync/internal/process"
)

// TestHelperProcess stands in for `rclone authorize`
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	link := "Please go to the following link: http://127.0.0.1:53682/auth?state=xyz"
	switch os.Getenv("HELPER_MODE") {
	case "success":
		fmt.Fprintln(os.Stderr, "NOTICE: Make sure your Redirect URL is set")
		fmt.Fprintln(os.Stderr, "NOTICE: "+link+"  ")
		fmt.Fprintln(os.Stderr, "NOTICE: "+link)
		fmt.Fprint(os.Stdout, `noise{"token":"abc"}moretext`)
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "Failed to configure token")
		os.Exit(1)
	case "nojson":
		fmt.Fprint(os.Stdout, "no token here")
		os.Exit(0)
	case "hang":
		fmt.Fprintln(os.Stderr, "NOTICE: "+link)
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRegistrar) Register(ctx context.Context, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+"="+token)
	return f.err
}

func (f *fakeRegistrar) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type commandRecorder struct {
	mu   sync.Mutex
	name string
	args []string
}

func newTestAuthorizer(t *testing.T, mode string) (*Authorizer, *fakeRegistrar, *commandRecorder) {
	t.Helper()
	registrar := &fakeRegistrar{}
	recorder := &commandRecorder{}

	a := NewAuthorizer(Config{}, registrar, process.NewRegistry())
	a.newCommand = func(name string, args ...string) *exec.Cmd {
		recorder.mu.Lock()
		recorder.name, recorder.args = name, args
		recorder.mu.Unlock()

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	return a, registrar, recorder
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{`noise{"token":"abc"}moretext`, `{"token":"abc"}`, true},
		{`{"a":{"b":1}}`, `{"a":{"b":1}}`, true},
		{"Paste the following into your remote machine --->\n{\"access_token\":\"x\"}\n<---End paste", `{"access_token":"x"}`, true},
		{"no braces", "", false},
		{"} reversed {", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractJSON(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestAuthorize_Success(t *testing.T) {
	a, registrar, recorder := newTestAuthorizer(t, "success")

	var urls []string
	result, err := a.Authorize(context.Background(), func(url string) {
		urls = append(urls, url)
	})
	require.NoError(t, err)
	assert.Equal(t, models.AuthStateSucceeded, result.State)
	assert.Equal(t, DefaultProfileName, result.Profile)

	assert.Equal(t, []string{"http://127.0.0.1:53682/auth?state=xyz"}, urls, "url is emitted exactly once")
	assert.Equal(t, []string{DefaultProfileName + `={"token":"abc"}`}, registrar.Calls())

	recorder.mu.Lock()
	assert.Equal(t, "rclone", recorder.name)
	assert.Equal(t, []string{"authorize", "drive", "--auth-no-open-browser"}, recorder.args)
	recorder.mu.Unlock()

	status := a.Status()
	assert.Equal(t, models.AuthStateSucceeded, status.State)
	assert.Equal(t, "http://127.0.0.1:53682/auth?state=xyz", status.URL)
}

func TestAuthorize_NonZeroExit(t *testing.T) {
	a, registrar, _ := newTestAuthorizer(t, "fail")

	result, err := a.Authorize(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.AuthStateFailed, result.State)
	assert.Contains(t, result.Message, "rclone authorize failed")
	assert.Empty(t, registrar.Calls())
}

func TestAuthorize_NoJSON(t *testing.T) {
	a, registrar, _ := newTestAuthorizer(t, "nojson")

	result, err := a.Authorize(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.AuthStateFailed, result.State)
	assert.Equal(t, "failed to extract token from auth output", result.Message)
	assert.Empty(t, registrar.Calls())
}

func TestAuthorize_RegistrationFailure(t *testing.T) {
	a, registrar, _ := newTestAuthorizer(t, "success")
	registrar.err = errors.New("daemon unavailable")

	result, err := a.Authorize(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.AuthStateFailed, result.State)
	assert.Contains(t, result.Message, "daemon unavailable")
}

func TestAuthorize_Cancel(t *testing.T) {
	a, registrar, _ := newTestAuthorizer(t, "hang")

	urlSeen := make(chan struct{})
	type outcome struct {
		result *models.AuthResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var once sync.Once
		result, err := a.Authorize(context.Background(), func(string) {
			once.Do(func() { close(urlSeen) })
		})
		done <- outcome{result, err}
	}()

	select {
	case <-urlSeen:
	case <-time.After(10 * time.Second):
		t.Fatal("authorization url was never emitted")
	}
	assert.Equal(t, models.AuthStateRunning, a.Status().State)

	assert.True(t, a.Cancel())
	assert.False(t, a.Cancel(), "second cancel is a no-op")

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, models.AuthStateCancelled, out.result.State)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled session did not terminate")
	}

	assert.Empty(t, registrar.Calls(), "no credential is registered after cancel")
	assert.Equal(t, models.AuthStateCancelled, a.Status().State)
}

func TestAuthorize_NewSessionReplacesOld(t *testing.T) {
	a, _, _ := newTestAuthorizer(t, "hang")

	first := make(chan *models.AuthResult, 1)
	started := make(chan struct{})
	go func() {
		var once sync.Once
		result, _ := a.Authorize(context.Background(), func(string) {
			once.Do(func() { close(started) })
		})
		first <- result
	}()

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("first session never started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := a.Authorize(ctx, nil)
		second <- err
	}()

	select {
	case result := <-first:
		assert.Equal(t, models.AuthStateCancelled, result.State)
	case <-time.After(10 * time.Second):
		t.Fatal("first session was not replaced")
	}

	cancel()
	select {
	case err := <-second:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("second session ignored context cancellation")
	}
}

func TestCancel_NoSession(t *testing.T) {
	a := NewAuthorizer(Config{}, &fakeRegistrar{}, nil)
	assert.False(t, a.Cancel())
	assert.Equal(t, models.AuthStateIdle, a.Status().State)
}

func TestAuthorize_SpawnFailure(t *testing.T) {
	a := NewAuthorizer(Config{Binary: "/nonexistent/rclone-binary"}, &fakeRegistrar{}, nil)

	result, err := a.Authorize(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.AuthStateFailed, result.State)
	assert.Contains(t, result.Message, "failed to spawn rclone authorize")
}

func TestAuthorize_CancelBeforeSpawn(t *testing.T) {
	a, registrar, _ := newTestAuthorizer(t, "hang")
	spawn := a.newCommand

	var cancelled bool
	a.newCommand = func(name string, args ...string) *exec.Cmd {
		assert.Equal(t, models.AuthStateRunning, a.Status().State)
		cancelled = a.Cancel()
		return spawn(name, args...)
	}

	result, err := a.Authorize(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, cancelled, "session is cancellable while the process starts")
	assert.Equal(t, models.AuthStateCancelled, result.State)
	assert.Equal(t, 0, a.registry.Len(), "cancelled session never spawns")
	assert.Empty(t, registrar.Calls())
	assert.Equal(t, models.AuthStateCancelled, a.Status().State)
}
