// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"fmt"
	"testing"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
	"github.com/aristanetworks/keybucket/test"
)

// TestScanCoversAllKeysAcrossGrowth seeds 10,000 keys (enough to force
// several dict grows along the way) and drives the cursor to
// completion, checking that every key present for the whole scan is
// visited at least once (invariant 6 / scenario 6).
func TestScanCoversAllKeysAcrossGrowth(t *testing.T) {
	bundle := collab.Default(func() int64 { return 0 })
	db := NewDatabase(0, bucket.NewTable(420000), bundle, nil)

	const n = 10000
	want := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%d", i)
		db.Set(k, NewRawValue([]byte("v")))
		want[k] = true
	}

	seen := make(map[string]bool, n)
	cursor := uint64(0)
	iterations := 0
	for {
		res := db.Scan(cursor, 100, "")
		for _, k := range res.Keys {
			seen[k] = true
		}
		cursor = res.Cursor
		iterations++
		if cursor == 0 {
			break
		}
		if iterations > 100000 {
			t.Fatal("scan did not terminate")
		}
	}

	for k := range want {
		if !seen[k] {
			t.Fatalf("key %q was never visited by scan", k)
		}
	}
}

func TestScanStartAndDoneAreBothZero(t *testing.T) {
	bundle := collab.Default(func() int64 { return 0 })
	db := NewDatabase(0, bucket.NewTable(16), bundle, nil)
	db.Set("only", NewRawValue([]byte("v")))

	cursor := uint64(0)
	for {
		res := db.Scan(cursor, 10, "")
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	// a fresh scan from 0 must find "only" again
	res := db.Scan(0, 10, "")
	found := false
	for _, k := range res.Keys {
		if k == "only" {
			found = true
		}
	}
	if !found {
		t.Fatal("restarting a scan from cursor 0 should find previously-visited keys again")
	}
}

func TestScanMatchFiltersKeys(t *testing.T) {
	bundle := collab.Default(func() int64 { return 0 })
	db := NewDatabase(0, bucket.NewTable(16), bundle, nil)
	db.Set("user:1", NewRawValue([]byte("v")))
	db.Set("user:2", NewRawValue([]byte("v")))
	db.Set("session:1", NewRawValue([]byte("v")))

	seen := map[string]bool{}
	cursor := uint64(0)
	for {
		res := db.Scan(cursor, 10, "user:*")
		for _, k := range res.Keys {
			seen[k] = true
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	if !seen["user:1"] || !seen["user:2"] {
		t.Fatalf("seen = %v, want both user:* keys", seen)
	}
	if seen["session:1"] {
		t.Fatal("MATCH user:* should not return session:1")
	}

	want := map[string]interface{}{"user:1": true, "user:2": true}
	got := map[string]interface{}{}
	for k := range seen {
		got[k] = true
	}
	if !test.DeepEqual(want, got) {
		t.Fatalf("seen set = %#v, want %#v", got, want)
	}
}
