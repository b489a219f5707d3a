// Package worker runs export jobs in the background and tracks their
// lifecycle in an in-process registry polled by the API.
package worker

import (
	"sync"
	"time"
)

// Status is a job's lifecycle state. Both terminal states force
// progress to 100 so a poller is guaranteed eventual termination, and
// they stay distinguishable so failure never masquerades as success.
type Status string

// Job lifecycle states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one export job's tracked state.
type Job struct {
	ID string

	// File is the output file name inside the export directory.
	File string

	Status Status

	// Progress is an integer in [0, 100], non-decreasing over the
	// job's lifetime.
	Progress int

	// Reason carries the failure detail for StatusFailed jobs.
	Reason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry tracks jobs by id. Each job is written only by the worker
// running it and read by arbitrary concurrent pollers. Terminal jobs
// are evicted after a TTL.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewRegistry creates a registry that keeps terminal jobs for ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
}

// Create registers a new queued job at progress 0.
func (r *Registry) Create(id, file string) Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	job := &Job{
		ID:        id,
		File:      file,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = job
	return *job
}

// MarkRunning transitions a job to the running state.
func (r *Registry) MarkRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok && !job.Status.Terminal() {
		job.Status = StatusRunning
		job.UpdatedAt = r.now()
	}
}

// SetProgress records fetch progress. Values are clamped to [0, 100]
// and never decrease, so pollers observe a monotonic sequence.
func (r *Registry) SetProgress(id string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	if pct > job.Progress {
		job.Progress = pct
		job.UpdatedAt = r.now()
	}
}

// Complete marks a job succeeded at progress 100.
func (r *Registry) Complete(id string) {
	r.finish(id, StatusSucceeded, "")
}

// Fail marks a job failed at progress 100 with the given reason.
func (r *Registry) Fail(id, reason string) {
	r.finish(id, StatusFailed, reason)
}

func (r *Registry) finish(id string, status Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = status
	job.Reason = reason
	job.Progress = 100
	job.UpdatedAt = r.now()
}

// Get returns a copy of the job's current state.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Progress returns the job's progress, 0 for unknown ids.
func (r *Registry) Progress(id string) int {
	job, ok := r.Get(id)
	if !ok {
		return 0
	}
	return job.Progress
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// StartEvictor launches a janitor that drops terminal jobs older than
// the TTL. Stop terminates it.
func (r *Registry) StartEvictor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.evict()
			}
		}
	}()
}

// Stop terminates the eviction janitor. Safe to call more than once.
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *Registry) evict() {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, job := range r.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
