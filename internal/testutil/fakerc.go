package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"karsync/internal/models"
)

// FakeJob scripts how a submitted job behaves on the fake daemon
type FakeJob struct {
	// PollsUntilFinished is how many job/status calls report running first
	PollsUntilFinished int
	Error              string
	NotFound           bool
	Stats              map[string]int64
	// OnSubmit runs when the job is accepted, e.g. to write log lines
	OnSubmit func(body map[string]interface{})

	polls int
}

// RecordedRequest is one call received by the fake daemon
type RecordedRequest struct {
	Path string
	Body map[string]interface{}
}

// FakeRC is an httptest stand-in for `rclone rcd`
type FakeRC struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextJobID   int64
	queued      []*FakeJob
	jobs        map[int64]*FakeJob
	requests    []RecordedRequest
	startStatus int
	startBody   string
	noJobID     bool

	Remotes   map[string]map[string]interface{}
	Files     []models.RCloneListItem
	CoreStats map[string]interface{}
}

func NewFakeRC(t *testing.T) *FakeRC {
	t.Helper()

	f := &FakeRC{
		nextJobID: 1,
		jobs:      make(map[int64]*FakeJob),
		Remotes:   make(map[string]map[string]interface{}),
		CoreStats: map[string]interface{}{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeRC) URL() string {
	return f.Server.URL
}

// QueueJob scripts the next submitted job. Unscripted jobs finish on the
// first poll with empty stats.
func (f *FakeRC) QueueJob(job FakeJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, &job)
}

// FailSubmissions makes sync/copy and sync/sync answer with status and body
func (f *FakeRC) FailSubmissions(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startStatus = status
	f.startBody = body
}

// OmitJobID makes submissions succeed without a job id
func (f *FakeRC) OmitJobID() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noJobID = true
}

// Requests returns the recorded calls to path
func (f *FakeRC) Requests(path string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RecordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeRC) handle(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	switch r.URL.Path {
	case "/core/pid":
		writeJSON(w, http.StatusOK, map[string]int{"pid": 4242})
	case "/core/quit":
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	case "/sync/copy", "/sync/sync":
		f.handleStart(w, body)
	case "/job/status":
		f.handleStatus(w, body)
	case "/core/stats":
		f.handleStats(w, body)
	case "/config/dump":
		f.mu.Lock()
		remotes := f.Remotes
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, remotes)
	case "/config/create":
		f.handleConfigCreate(w, body)
	case "/operations/list":
		f.mu.Lock()
		files := f.Files
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"list": files})
	default:
		writeRCError(w, http.StatusNotFound, "couldn't find method")
	}
}

func (f *FakeRC) handleStart(w http.ResponseWriter, body map[string]interface{}) {
	f.mu.Lock()
	if f.startStatus != 0 {
		status, msg := f.startStatus, f.startBody
		f.mu.Unlock()
		writeRCError(w, status, msg)
		return
	}
	if f.noJobID {
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}

	job := &FakeJob{}
	if len(f.queued) > 0 {
		job = f.queued[0]
		f.queued = f.queued[1:]
	}
	id := f.nextJobID
	f.nextJobID++
	f.jobs[id] = job
	f.mu.Unlock()

	if job.OnSubmit != nil {
		job.OnSubmit(body)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"jobid": id})
}

func (f *FakeRC) handleStatus(w http.ResponseWriter, body map[string]interface{}) {
	id := jobIDFrom(body)

	f.mu.Lock()
	job, ok := f.jobs[id]
	if !ok || job.NotFound {
		f.mu.Unlock()
		writeRCError(w, http.StatusInternalServerError, "job not found")
		return
	}
	job.polls++
	finished := job.polls > job.PollsUntilFinished
	errText := job.Error
	f.mu.Unlock()

	resp := map[string]interface{}{
		"id":       id,
		"group":    fmt.Sprintf("job/%d", id),
		"finished": finished,
		"success":  finished && errText == "",
		"error":    "",
	}
	if finished {
		resp["error"] = errText
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeRC) handleStats(w http.ResponseWriter, body map[string]interface{}) {
	group, _ := body["group"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()

	if group == "" {
		writeJSON(w, http.StatusOK, f.CoreStats)
		return
	}

	var id int64
	if _, err := fmt.Sscanf(group, "job/%d", &id); err == nil {
		if job, ok := f.jobs[id]; ok && job.Stats != nil {
			writeJSON(w, http.StatusOK, job.Stats)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (f *FakeRC) handleConfigCreate(w http.ResponseWriter, body map[string]interface{}) {
	name, _ := body["name"].(string)
	remoteType, _ := body["type"].(string)
	if name == "" || remoteType == "" {
		writeRCError(w, http.StatusBadRequest, "name and type are required")
		return
	}

	entry := map[string]interface{}{"type": remoteType}
	if params, ok := body["parameters"].(map[string]interface{}); ok {
		for k, v := range params {
			entry[k] = v
		}
	}

	f.mu.Lock()
	f.Remotes[name] = entry
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func jobIDFrom(body map[string]interface{}) int64 {
	if v, ok := body["jobid"].(float64); ok {
		return int64(v)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRCError mimics the error envelope of the rc server
func writeRCError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error":  msg,
		"status": status,
	})
}
