package process

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if len(os.Args) > 0 && os.Args[len(os.Args)-1] == "sleep" {
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func startHelper(t *testing.T, mode string) *exec.Cmd {
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", mode)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	require.NoError(t, cmd.Start())
	return cmd
}

func TestRegistry_KillAll(t *testing.T) {
	registry := NewRegistry()
	sleeper := startHelper(t, "sleep")
	registry.Add(sleeper.Process)
	registry.Add(nil)
	assert.Equal(t, 1, registry.Len())

	require.NoError(t, registry.KillAll())
	assert.Equal(t, 0, registry.Len())

	done := make(chan error, 1)
	go func() { done <- sleeper.Wait() }()

	select {
	case err := <-done:
		assert.Error(t, err, "killed process should exit with an error")
	case <-time.After(5 * time.Second):
		t.Fatal("process was not killed")
	}
}

func TestRegistry_KillAllSkipsExited(t *testing.T) {
	registry := NewRegistry()
	quick := startHelper(t, "exit")
	require.NoError(t, quick.Wait())
	registry.Add(quick.Process)

	assert.NoError(t, registry.KillAll())
	assert.NoError(t, registry.KillAll(), "second drain is a no-op")
}
