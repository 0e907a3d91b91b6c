package cron

import (
	"context"
	"errors"
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
	registry.Register(jobA)
	registry.Register(jobB)
	registry.Register(nil)
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

func TestRegistryReplacesJobWithSameName(t *testing.T) {
	first := &stubJob{name: "auto-confirm"}
	second := &stubJob{name: "auto-confirm"}
	registry := NewRegistry(first, second)
	jobs := registry.Jobs()
	if len(jobs) != 1 || jobs[0] != second {
		t.Fatalf("expected the later job to replace the earlier one, got %v", jobs)
	}
}

type fakeLocker struct {
	owner   string
	ttl     time.Duration
	err     error
	release int
	extends int
}

func (f *fakeLocker) AcquireLock(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if f.owner != "" {
		return "", false, nil
	}
	f.owner = name + "-token"
	f.ttl = ttl
	return f.owner, true, nil
}

func (f *fakeLocker) ExtendLock(_ context.Context, _ string, token string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if token != f.owner {
		return false, nil
	}
	f.ttl = ttl
	f.extends++
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, _ string, token string) error {
	if token == f.owner {
		f.owner = ""
		f.release++
	}
	return nil
}

func TestRedisLockLifecycle(t *testing.T) {
	locker := &fakeLocker{}
	lock, err := NewRedisLock(locker, "cron-tick", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if locker.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", locker.ttl)
	}

	other, _ := NewRedisLock(locker, "cron-tick", time.Minute)
	if ok, _ := other.Acquire(context.Background()); ok {
		t.Fatal("second worker must not get the lock")
	}
	if err := other.Release(context.Background()); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if locker.release != 0 {
		t.Fatal("non-owner released the lock")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if locker.release != 1 || locker.owner != "" {
		t.Fatal("owner release did not free the lock")
	}
}

func TestRedisLockExtend(t *testing.T) {
	locker := &fakeLocker{}
	lock, _ := NewRedisLock(locker, "cron-tick", time.Minute)
	if held, _ := lock.Extend(context.Background()); held {
		t.Fatal("extend without acquiring must report false")
	}
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected lock")
	}
	held, err := lock.Extend(context.Background())
	if err != nil || !held || locker.extends != 1 {
		t.Fatalf("expected renewal, got held=%v err=%v extends=%d", held, err, locker.extends)
	}

	locker.owner = "stolen"
	if held, _ := lock.Extend(context.Background()); held {
		t.Fatal("lost lock must not extend")
	}
	if err := lock.Release(context.Background()); err != nil || locker.owner != "stolen" {
		t.Fatal("release after losing the lock must not touch the new owner")
	}
}

func TestServiceStopsWhenLeaseLost(t *testing.T) {
	locker := &fakeLocker{}
	lock, _ := NewRedisLock(locker, "cron-tick", time.Minute)
	first := &stealingJob{locker: locker}
	second := &testJob{name: "second"}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(first, second), Lock: lock})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if second.runs != 0 {
		t.Fatal("jobs after a lost lease must wait for the next tick")
	}
}

type stealingJob struct{ locker *fakeLocker }

func (s *stealingJob) Name() string { return "steal" }

func (s *stealingJob) Run(context.Context) error {
	s.locker.owner = "another-worker"
	return nil
}

func TestRedisLockWrapsErrors(t *testing.T) {
	lock, _ := NewRedisLock(&fakeLocker{err: errors.New("dial tcp")}, "cron-tick", time.Minute)
	if _, err := lock.Acquire(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewRedisLock(nil, "x", time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
}
