package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
)

type fakeLock struct {
	held    map[string]bool
	blocked map[string]bool
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: map[string]bool{}, blocked: map[string]bool{}}
}

func (f *fakeLock) Acquire(_ context.Context, job string) (bool, error) {
	if f.held[job] || f.blocked[job] {
		return false, nil
	}
	f.held[job] = true
	return true, nil
}

func (f *fakeLock) Release(_ context.Context, job string) error {
	delete(f.held, job)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newCronService(t *testing.T, registry *Registry, lock Lock, m *metrics.CronJobMetrics) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "artifact-expiry-sweep"}
	failure := &testJob{name: "fulfillment-retry", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	lock := newFakeLock()
	service := newCronService(t, NewRegistry(success, failure), lock, m)

	service.runCycle(context.Background())

	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d/%d", success.runs, failure.runs)
	}
	if len(lock.held) != 0 {
		t.Fatalf("expected locks released, still held: %v", lock.held)
	}
	if n, err := testutil.GatherAndCount(reg, "printshop_cron_job_runs_total"); err != nil || n != 2 {
		t.Fatalf("expected one failure and one success series, got %d (%v)", n, err)
	}
}

func TestServiceRunCycleSkipsLockedJobs(t *testing.T) {
	job := &testJob{name: "pending-payment-reconcile"}
	other := &testJob{name: "outbox-retention"}
	lock := newFakeLock()
	lock.blocked["pending-payment-reconcile"] = true
	service := newCronService(t, NewRegistry(job, other), lock, nil)

	service.runCycle(context.Background())

	if job.runs != 0 {
		t.Fatalf("locked job should not run")
	}
	if other.runs != 1 {
		t.Fatalf("other jobs keep running while one is locked")
	}
}

func TestServiceRunCycleWaitsForCadence(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	hourly := &testJob{name: "artifact-expiry-sweep"}
	registry := NewRegistry()
	registry.Register(hourly, time.Hour)
	service := newCronService(t, registry, newFakeLock(), nil)
	service.now = func() time.Time { return now }

	service.runCycle(context.Background())
	now = now.Add(10 * time.Minute)
	service.runCycle(context.Background())
	if hourly.runs != 1 {
		t.Fatalf("expected one run inside the hour, got %d", hourly.runs)
	}

	now = now.Add(time.Hour)
	service.runCycle(context.Background())
	if hourly.runs != 2 {
		t.Fatalf("expected second run after the hour, got %d", hourly.runs)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	service := newCronService(t, NewRegistry(job), newFakeLock(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type prefixKeys struct{}

func (prefixKeys) LockKey(name string) string { return "ps:lock:" + name }

func TestRedisLockIsPerJobAndOwnerChecked(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, prefixKeys{}, time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	second, _ := NewRedisLock(store, prefixKeys{}, time.Minute)
	ctx := context.Background()

	if ok, _ := first.Acquire(ctx, "fulfillment-retry"); !ok {
		t.Fatalf("expected first acquire")
	}
	if ok, _ := second.Acquire(ctx, "fulfillment-retry"); ok {
		t.Fatalf("expected second worker blocked")
	}
	if ok, _ := second.Acquire(ctx, "artifact-expiry-sweep"); !ok {
		t.Fatalf("expected a different job to be lockable")
	}
	if _, ok := store.values["ps:lock:cron:fulfillment-retry"]; !ok {
		t.Fatalf("expected namespaced lock key, got %v", store.values)
	}

	if err := second.Release(ctx, "fulfillment-retry"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values["ps:lock:cron:fulfillment-retry"]; !ok {
		t.Fatalf("non-owner release must not delete the key")
	}
	if err := first.Release(ctx, "fulfillment-retry"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values["ps:lock:cron:fulfillment-retry"]; ok {
		t.Fatalf("owner release should delete the key")
	}
}
