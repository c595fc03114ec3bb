// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"testing"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
)

type fakeWAL struct {
	entries [][]string
}

func (w *fakeWAL) Append(dbID int, argv []string) error {
	w.entries = append(w.entries, argv)
	return nil
}

type fakeFollowers struct {
	fed [][]string
}

func (f *fakeFollowers) Feed(dbID int, argv []string) error {
	f.fed = append(f.fed, argv)
	return nil
}

type fakeEvents struct {
	events []string
}

func (e *fakeEvents) Publish(kind, event, key string, dbID int) {
	e.events = append(e.events, event+":"+key)
}

func newTestDatabase(t *testing.T, now int64) (*Database, *fakeWAL, *fakeFollowers, *fakeEvents) {
	t.Helper()
	wal := &fakeWAL{}
	followers := &fakeFollowers{}
	events := &fakeEvents{}
	clock := now
	bundle := collab.Default(func() int64 { return clock })
	bundle.WAL = wal
	bundle.Followers = followers
	bundle.Events = events
	db := NewDatabase(0, bucket.NewTable(16), bundle, nil)
	return db, wal, followers, events
}

func TestExpireIfNeededEmitsOneDel(t *testing.T) {
	db, wal, followers, events := newTestDatabase(t, 1000)
	db.Set("foo", NewRawValue([]byte("bar")))
	db.expires["foo"] = 999 // already due

	if status := db.ExpireIfNeeded("foo"); status != Expired {
		t.Fatalf("ExpireIfNeeded = %v, want Expired", status)
	}
	if db.Exists("foo") {
		t.Fatal("foo should be gone after expiry")
	}
	if len(wal.entries) != 1 || wal.entries[0][0] != "DEL" || wal.entries[0][1] != "foo" {
		t.Fatalf("wal.entries = %v, want one DEL foo", wal.entries)
	}
	if len(followers.fed) != 1 {
		t.Fatalf("followers.fed = %v, want one entry", followers.fed)
	}
	if len(events.events) != 1 || events.events[0] != "expired:foo" {
		t.Fatalf("events = %v, want [expired:foo]", events.events)
	}

	// Idempotent: calling again emits nothing further.
	if status := db.ExpireIfNeeded("foo"); status != Alive {
		t.Fatalf("second ExpireIfNeeded = %v, want Alive (no entry left)", status)
	}
	if len(wal.entries) != 1 {
		t.Fatalf("wal.entries after second call = %v, want still 1", wal.entries)
	}
}

func TestExpireIfNeededFollowerDoesNotDelete(t *testing.T) {
	db, wal, followers, _ := newTestDatabase(t, 1000)
	db.collab.FollowerOf = func() bool { return true }
	db.Set("foo", NewRawValue([]byte("bar")))
	db.expires["foo"] = 500 // already due

	if status := db.ExpireIfNeeded("foo"); status != Expired {
		t.Fatalf("ExpireIfNeeded = %v, want Expired (reported truthfully)", status)
	}
	if _, ok := db.primary.Get("foo"); !ok {
		t.Fatal("a follower must not delete an expired key itself")
	}
	if len(wal.entries) != 0 || len(followers.fed) != 0 {
		t.Fatal("a follower must not propagate its own DEL")
	}
}

func TestExpireIfNeededSnapshotGate(t *testing.T) {
	db, wal, _, _ := newTestDatabase(t, 1000)
	db.collab.Snapshot = func() bool { return true }
	db.Set("foo", NewRawValue([]byte("bar")))
	db.expires["foo"] = 500

	if status := db.ExpireIfNeeded("foo"); status != Alive {
		t.Fatalf("ExpireIfNeeded during snapshot = %v, want Alive", status)
	}
	if len(wal.entries) != 0 {
		t.Fatal("no eviction should happen while a snapshot child is active")
	}
}

func TestTTLMillis(t *testing.T) {
	db, _, _, _ := newTestDatabase(t, 1000)
	if got := db.TTLMillis("missing"); got != -2 {
		t.Fatalf("TTLMillis(missing) = %d, want -2", got)
	}
	db.Set("foo", NewRawValue([]byte("x")))
	if got := db.TTLMillis("foo"); got != -1 {
		t.Fatalf("TTLMillis(foo) = %d, want -1 (no expiry)", got)
	}
	if _, err := db.ExpireAt("foo", 1500); err != nil {
		t.Fatalf("ExpireAt: %v", err)
	}
	if got := db.TTLMillis("foo"); got != 500 {
		t.Fatalf("TTLMillis(foo) = %d, want 500", got)
	}
}
