package cron

import (
	"context"
	"time"
)

// Job is a scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
}

// Registry holds jobs with their cadence.
type Registry struct {
	entries []entry
}

// NewRegistry builds a registry whose jobs run on every tick.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job, 0)
	}
	return registry
}

// Register adds a job that runs at most once per every. Zero means every tick.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	if every < 0 {
		every = 0
	}
	r.entries = append(r.entries, entry{job: job, every: every})
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed since lastRun.
func (r *Registry) Due(now time.Time, lastRun map[string]time.Time) []Job {
	var due []Job
	for _, e := range r.entries {
		last, ok := lastRun[e.job.Name()]
		if !ok || e.every == 0 || now.Sub(last) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}
