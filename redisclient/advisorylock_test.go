package redisclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Julianlamaravilla/yuno-nebula/config"
	"github.com/Julianlamaravilla/yuno-nebula/redisclient"
)

func newTestClient(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.New(&config.Config{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestAdvisoryLockAcquireIsExclusive(t *testing.T) {
	client, _ := newTestClient(t)

	lockA := redisclient.NewAdvisoryLock(client, "singleton", time.Minute)
	lockB := redisclient.NewAdvisoryLock(client, "singleton", time.Minute)

	ok, err := lockA.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = lockB.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while the first holder is still active")
	}
}

func TestAdvisoryLockReleaseFreesTheKeyForAnotherHolder(t *testing.T) {
	client, _ := newTestClient(t)

	lockA := redisclient.NewAdvisoryLock(client, "singleton", time.Minute)
	ok, err := lockA.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, got ok=%v err=%v", ok, err)
	}
	lockA.Release()

	lockB := redisclient.NewAdvisoryLock(client, "singleton", time.Minute)
	ok, err = lockB.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected second holder to acquire after release, got ok=%v err=%v", ok, err)
	}
}

func TestAdvisoryLockReleaseDoesNotStealAnotherHoldersLock(t *testing.T) {
	client, mr := newTestClient(t)

	lockA := redisclient.NewAdvisoryLock(client, "singleton", 50*time.Millisecond)
	ok, err := lockA.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	mr.FastForward(100 * time.Millisecond)

	lockB := redisclient.NewAdvisoryLock(client, "singleton", time.Minute)
	ok, err = lockB.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected second holder to acquire after the first's TTL lapsed, got ok=%v err=%v", ok, err)
	}

	lockA.Release()

	if !mr.Exists("advisory_lock:singleton") {
		t.Fatal("expected the second holder's lock to survive the first holder's stale release")
	}
}
