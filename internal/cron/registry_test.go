package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA, time.Minute)
	registry.Register(jobB, 0)
	registry.Register(nil, time.Minute)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryDueHonoursCadence(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	hourly := &stubJob{name: "hourly"}
	always := &stubJob{name: "always"}
	registry := NewRegistry()
	registry.Register(hourly, time.Hour)
	registry.Register(always, 0)

	if due := registry.Due(now, map[string]time.Time{}); len(due) != 2 {
		t.Fatalf("expected every job due on first run, got %d", len(due))
	}

	last := map[string]time.Time{"hourly": now.Add(-30 * time.Minute), "always": now.Add(-time.Second)}
	due := registry.Due(now, last)
	if len(due) != 1 || due[0] != always {
		t.Fatalf("expected only the tick job due, got %v", due)
	}

	last["hourly"] = now.Add(-time.Hour)
	if due := registry.Due(now, last); len(due) != 2 {
		t.Fatalf("expected hourly job due after its cadence, got %d", len(due))
	}
}
