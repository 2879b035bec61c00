package directory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDirectory(t *testing.T) (*Directory, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, time.Hour), func() { mr.Close() }
}

func TestRecordAndResolve(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()
	ctx := context.Background()

	if err := d.RecordConnection(ctx, "c1", "u1"); err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}
	uid, err := d.ResolveUser(ctx, "c1")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if uid != "u1" {
		t.Fatalf("expected u1, got %q", uid)
	}
}

func TestResolveUnknownConnection(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()

	if _, err := d.ResolveUser(context.Background(), "forged"); !errors.Is(err, ErrUnauthorizedConnection) {
		t.Fatalf("expected ErrUnauthorizedConnection, got %v", err)
	}
}

func TestAddSubscriptionRequiresRecord(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()

	if err := d.AddSubscription(context.Background(), "nope", "lb1"); !errors.Is(err, ErrUnauthorizedConnection) {
		t.Fatalf("expected ErrUnauthorizedConnection, got %v", err)
	}
}

func TestSubscriptionSetMath(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()
	ctx := context.Background()

	if err := d.RecordConnection(ctx, "c1", "u1"); err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}
	for _, lb := range []string{"lb1", "lb2", "lb1"} {
		if err := d.AddSubscription(ctx, "c1", lb); err != nil {
			t.Fatalf("AddSubscription(%s): %v", lb, err)
		}
	}
	subs, err := d.Subscriptions(ctx, "c1")
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	sort.Strings(subs)
	if len(subs) != 2 || subs[0] != "lb1" || subs[1] != "lb2" {
		t.Fatalf("unexpected subs: %v", subs)
	}

	if err := d.RemoveSubscription(ctx, "c1", "lb1"); err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	// removing a non-member is a no-op
	if err := d.RemoveSubscription(ctx, "c1", "lb9"); err != nil {
		t.Fatalf("RemoveSubscription non-member: %v", err)
	}
	subs, _ = d.Subscriptions(ctx, "c1")
	if len(subs) != 1 || subs[0] != "lb2" {
		t.Fatalf("expected [lb2], got %v", subs)
	}
}

func TestRemoveConnection(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()
	ctx := context.Background()

	if err := d.RecordConnection(ctx, "c1", "u1"); err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}
	if err := d.AddSubscription(ctx, "c1", "lb1"); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if err := d.RemoveConnection(ctx, "c1"); err != nil {
		t.Fatalf("RemoveConnection: %v", err)
	}
	if _, err := d.ResolveUser(ctx, "c1"); !errors.Is(err, ErrUnauthorizedConnection) {
		t.Fatalf("expected unauthorized after removal, got %v", err)
	}
	snap, err := d.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap)
	}
}

func TestActivityRefreshesRecordTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := New(rdb, time.Hour)
	ctx := context.Background()

	if err := d.RecordConnection(ctx, "c1", "u1"); err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}
	if err := d.AddSubscription(ctx, "c1", "lb1"); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}

	// activity past the original expiry keeps the record alive
	mr.FastForward(40 * time.Minute)
	if _, err := d.ResolveUser(ctx, "c1"); err != nil {
		t.Fatalf("ResolveUser at 40m: %v", err)
	}
	mr.FastForward(40 * time.Minute)
	if _, err := d.ResolveUser(ctx, "c1"); err != nil {
		t.Fatalf("ResolveUser at 80m after activity: %v", err)
	}
	subs, err := d.Subscriptions(ctx, "c1")
	if err != nil || len(subs) != 1 || subs[0] != "lb1" {
		t.Fatalf("subscriptions must survive the refresh, got %v (%v)", subs, err)
	}

	// without activity the record expires
	mr.FastForward(time.Hour + time.Minute)
	if _, err := d.ResolveUser(ctx, "c1"); !errors.Is(err, ErrUnauthorizedConnection) {
		t.Fatalf("expected expiry after idle hour, got %v", err)
	}
}

func TestSnapshotForHydration(t *testing.T) {
	d, cleanup := newTestDirectory(t)
	defer cleanup()
	ctx := context.Background()

	for _, c := range []struct{ conn, user string }{{"c1", "u1"}, {"c2", "u2"}, {"c3", "u3"}} {
		if err := d.RecordConnection(ctx, c.conn, c.user); err != nil {
			t.Fatalf("RecordConnection(%s): %v", c.conn, err)
		}
	}
	_ = d.AddSubscription(ctx, "c1", "lb1")
	_ = d.AddSubscription(ctx, "c1", "lb2")
	_ = d.AddSubscription(ctx, "c2", "lb1")
	// c3 has no subscriptions and should not appear

	snap, err := d.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("expected 2 connections in snapshot, got %v", snap)
	}
	if got := snap["c1"]; len(got) != 2 {
		t.Fatalf("expected c1 with 2 boards, got %v", got)
	}
	if got := snap["c2"]; len(got) != 1 || got[0] != "lb1" {
		t.Fatalf("expected c2 with [lb1], got %v", got)
	}
}
