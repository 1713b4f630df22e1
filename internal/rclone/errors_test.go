package rclone

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsServerGone(t *testing.T) {
	assert.False(t, IsServerGone(nil))
	assert.True(t, IsServerGone(errors.New("dial tcp 127.0.0.1:5572: connect: connection refused")))
	assert.True(t, IsServerGone(errors.New("error sending request for url")))
	assert.False(t, IsServerGone(errors.New("failed to decode response: unexpected EOF")))
	assert.False(t, IsServerGone(&HTTPError{StatusCode: 500, Body: "connection refused upstream"}))
	assert.False(t, IsServerGone(fmt.Errorf("wrapped: %w", &HTTPError{StatusCode: 404})))
}

func TestIsServerGone_ClosedListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := NewClient("http://"+addr, 0)
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsServerGone(err))
}

func TestHTTPError_Message(t *testing.T) {
	envelope := &HTTPError{StatusCode: 500, Body: `{"error":"job not found","status":500}`}
	assert.Equal(t, "job not found", envelope.Message())

	plain := &HTTPError{StatusCode: 502, Body: "bad gateway"}
	assert.Equal(t, "bad gateway", plain.Message())
	assert.Equal(t, "HTTP 502: bad gateway", plain.Error())
}

func TestIsJobNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"job not found","input":{"jobid":4},"path":"job/status","status":500}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.GetJobStatus(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, IsJobNotFound(err))
	assert.False(t, IsServerGone(err))

	assert.False(t, IsJobNotFound(errors.New("job not found")))
	assert.False(t, IsJobNotFound(&HTTPError{StatusCode: 500, Body: "other"}))
}
