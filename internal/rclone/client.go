package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"karsync/internal/models"
)

const DefaultTimeout = 30 * time.Second

// ErrNoJobID is returned when a transfer is accepted without a job id
var ErrNoJobID = errors.New("no jobid returned")

// Client represents an HTTP client for the rclone daemon
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new rclone HTTP client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout // Short timeout since we use async operations
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type jobStartResponse struct {
	JobID *int64 `json:"jobid"`
}

type jobIDRequest struct {
	JobID int64 `json:"jobid"`
}

type statsRequest struct {
	Group string `json:"group,omitempty"`
}

type listRequest struct {
	Fs     string                 `json:"fs"`
	Remote string                 `json:"remote"`
	Opt    map[string]interface{} `json:"opt,omitempty"`
}

type listResponse struct {
	List []models.RCloneListItem `json:"list"`
}

// StartJob posts an async transfer to endpoint and returns the job id
func (c *Client) StartJob(ctx context.Context, endpoint string, body models.SyncRequest) (int64, error) {
	var resp jobStartResponse
	if err := c.makeRequest(ctx, "POST", endpoint, body, &resp); err != nil {
		return 0, err
	}
	if resp.JobID == nil {
		return 0, ErrNoJobID
	}
	return *resp.JobID, nil
}

// GetJobStatus gets the status of a specific job
func (c *Client) GetJobStatus(ctx context.Context, jobID int64) (*models.RCloneJobStatus, error) {
	var status models.RCloneJobStatus
	err := c.makeRequest(ctx, "POST", "/job/status", jobIDRequest{JobID: jobID}, &status)
	return &status, err
}

// GetJobStats returns the counters of the job's stats group. Counters
// missing from the response are zero.
func (c *Client) GetJobStats(ctx context.Context, jobID int64) (*models.RCloneJobStats, error) {
	var stats models.RCloneJobStats
	err := c.makeRequest(ctx, "POST", "/core/stats", statsRequest{Group: JobGroup(jobID)}, &stats)
	return &stats, err
}

// GetCoreStats returns the global transfer stats
func (c *Client) GetCoreStats(ctx context.Context) (*models.LiveStats, error) {
	var stats models.LiveStats
	err := c.makeRequest(ctx, "POST", "/core/stats", statsRequest{}, &stats)
	return &stats, err
}

// ConfigDump returns every configured remote keyed by name
func (c *Client) ConfigDump(ctx context.Context) (map[string]map[string]interface{}, error) {
	resp := make(map[string]map[string]interface{})
	err := c.makeRequest(ctx, "POST", "/config/dump", struct{}{}, &resp)
	return resp, err
}

// ListRemotesOfType returns the sorted names of remotes whose type matches
func (c *Client) ListRemotesOfType(ctx context.Context, remoteType string) ([]string, error) {
	dump, err := c.ConfigDump(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dump))
	for name, params := range dump {
		if t, ok := params["type"].(string); ok && t == remoteType {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ConfigCreate registers a new remote
func (c *Client) ConfigCreate(ctx context.Context, req models.RCloneConfigCreate) error {
	return c.makeRequest(ctx, "POST", "/config/create", req, nil)
}

// ListFiles lists fs recursively
func (c *Client) ListFiles(ctx context.Context, fs string) ([]models.RCloneListItem, error) {
	req := listRequest{
		Fs:     fs,
		Remote: "",
		Opt:    map[string]interface{}{"recurse": true},
	}

	var resp listResponse
	if err := c.makeRequest(ctx, "POST", "/operations/list", req, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

// Ping checks if the rclone daemon is responsive
func (c *Client) Ping(ctx context.Context) error {
	return c.makeRequest(ctx, "POST", "/core/pid", nil, nil)
}

// Quit asks the daemon to exit
func (c *Client) Quit(ctx context.Context) error {
	return c.makeRequest(ctx, "POST", "/core/quit", nil, nil)
}

// JobGroup is the stats group rclone assigns to an async job
func JobGroup(jobID int64) string {
	return fmt.Sprintf("job/%d", jobID)
}

// makeRequest makes an HTTP request to the rclone daemon
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, request interface{}, response interface{}) error {
	var body io.Reader
	if request != nil {
		jsonData, err := json.Marshal(request)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
