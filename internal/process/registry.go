// Package process tracks child processes so they can be killed at exit.
package process

import (
	"errors"
	"log/slog"
	"os"
	"sync"
)

// Registry holds handles of spawned subprocesses. Entries are only appended;
// KillAll drains it.
type Registry struct {
	mu    sync.Mutex
	procs []*os.Process
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add tracks p. A nil process is ignored.
func (r *Registry) Add(p *os.Process) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs = append(r.procs, p)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// KillAll kills every tracked process and empties the registry. Processes
// that already exited are skipped silently.
func (r *Registry) KillAll() error {
	r.mu.Lock()
	procs := r.procs
	r.procs = nil
	r.mu.Unlock()

	var errs []error
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				continue
			}
			slog.Warn("failed to kill subprocess", "pid", p.Pid, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
