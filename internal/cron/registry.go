package cron

import (
	"context"
	"sync"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled is implemented by jobs that only need to run every so often.
// Jobs without it run on every cycle.
type Scheduled interface {
	Every() time.Duration
}

type registration struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry tracks registered cron jobs and when each last succeeded.
type Registry struct {
	mu      sync.Mutex
	entries []*registration
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry. Nil jobs and duplicate names are ignored.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.job.Name() == job.Name() {
			return
		}
	}
	reg := &registration{job: job}
	if s, ok := job.(Scheduled); ok {
		reg.every = s.Every()
	}
	r.entries = append(r.entries, reg)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.entries))
	for _, reg := range r.entries {
		jobs = append(jobs, reg.job)
	}
	return jobs
}

// Due returns, in registration order, the jobs whose cadence has elapsed at now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, reg := range r.entries {
		if reg.every <= 0 || reg.lastRun.IsZero() || !now.Before(reg.lastRun.Add(reg.every)) {
			due = append(due, reg.job)
		}
	}
	return due
}

// MarkRan records a successful run of the named job started at at.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.entries {
		if reg.job.Name() == name {
			reg.lastRun = at
			return
		}
	}
}
