// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package dispatch

import (
	"fmt"
	"testing"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
	"github.com/aristanetworks/keybucket/khash"
	"github.com/aristanetworks/keybucket/server"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *server.State) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Buckets = 64
	cfg.DBNum = 2
	bundle := collab.Default(func() int64 { return 0 })
	state := server.NewState(cfg, bundle, nil)
	return New(state), state
}

// TestSingleKeyTransfer drives spec scenario 2 end to end through the
// dispatcher.
func TestSingleKeyTransfer(t *testing.T) {
	d, state := newTestDispatcher(t)
	sessA := state.NewSession()

	if r := d.Exec(sessA, []string{"SET", "alpha", "1"}); r.Kind != KindOK {
		t.Fatalf("SET alpha 1 = %+v, want OK", r)
	}
	h := khash.Bucket([]byte("alpha"), state.Buckets.Len())
	hs := fmt.Sprintf("%d", h)

	if r := d.Exec(sessA, []string{"RCTRANSSERVER", "out"}); r.Kind != KindOK {
		t.Fatalf("RCTRANSSERVER out = %+v, want OK", r)
	}
	if r := d.Exec(sessA, []string{"RCTRANSBEGIN", "out", hs, hs}); r.Kind != KindOK {
		t.Fatalf("RCTRANSBEGIN out %s %s = %+v, want OK", hs, hs, r)
	}
	if r := d.Exec(sessA, []string{"RCLOCKKEY", "alpha"}); r.Kind != KindOK {
		t.Fatalf("RCLOCKKEY alpha = %+v, want OK", r)
	}
	if r := d.Exec(sessA, []string{"RCKEYSTATUS", "alpha"}); r.Kind != KindInt || r.Int != 1 {
		t.Fatalf("RCKEYSTATUS alpha = %+v, want Int(1) TRANSFERING", r)
	}
	if r := d.Exec(sessA, []string{"RCTRANSENDKEY", "alpha"}); r.Kind != KindOK {
		t.Fatalf("RCTRANSENDKEY alpha = %+v, want OK", r)
	}
	if r := d.Exec(sessA, []string{"EXISTS", "alpha"}); r.Kind != KindInt || r.Int != 0 {
		t.Fatalf("EXISTS alpha = %+v, want Int(0)", r)
	}
	if r := d.Exec(sessA, []string{"RCTRANSEND", "out", hs, hs}); r.Kind != KindOK {
		t.Fatalf("RCTRANSEND out %s %s = %+v, want OK", hs, hs, r)
	}
	if r := d.Exec(sessA, []string{"RCRESETBUCKETS", hs, hs}); r.Kind != KindOK {
		t.Fatalf("RCRESETBUCKETS %s %s = %+v, want OK", hs, hs, r)
	}
	if r := d.Exec(sessA, []string{"RCBUCKETSTATUS", hs}); r.Kind != KindInt || r.Int != 0 {
		t.Fatalf("RCBUCKETSTATUS %s = %+v, want Int(0) IN_USING", hs, r)
	}
}

// TestLockAbsentKeyThenRejectSecond drives spec scenario 3.
func TestLockAbsentKeyThenRejectSecond(t *testing.T) {
	d, state := newTestDispatcher(t)
	sess := state.NewSession()
	h := khash.Bucket([]byte("ghost"), state.Buckets.Len())
	hs := fmt.Sprintf("%d", h)

	sess.Role = bucket.RoleTransOut
	if r := d.Exec(sess, []string{"RCTRANSBEGIN", "out", hs, hs}); r.Kind != KindOK {
		t.Fatalf("RCTRANSBEGIN out %s %s = %+v, want OK", hs, hs, r)
	}
	if r := d.Exec(sess, []string{"RCLOCKKEY", "ghost"}); r.Kind != KindOK {
		t.Fatalf("RCLOCKKEY ghost = %+v, want OK", r)
	}

	// find a second key hashing to the same bucket
	var other string
	for i := 0; ; i++ {
		cand := fmt.Sprintf("other-%d", i)
		if khash.Bucket([]byte(cand), state.Buckets.Len()) == h {
			other = cand
			break
		}
	}
	r := d.Exec(sess, []string{"RCLOCKKEY", other})
	if r.Kind != KindError {
		t.Fatalf("RCLOCKKEY %s while ghost is locked = %+v, want error", other, r)
	}

	if r := d.Exec(sess, []string{"RCUNLOCKKEY", "ghost"}); r.Kind != KindOK {
		t.Fatalf("RCUNLOCKKEY ghost = %+v, want OK", r)
	}
}

// TestResumeAfterCoordinatorReconnect drives spec scenario 4.
func TestResumeAfterCoordinatorReconnect(t *testing.T) {
	d, state := newTestDispatcher(t)
	sessA := state.NewSession()
	sessA.Role = bucket.RoleTransOut

	h := khash.Bucket([]byte("whatever"), state.Buckets.Len())
	hs := fmt.Sprintf("%d", h)

	if r := d.Exec(sessA, []string{"RCTRANSBEGIN", "out", hs, hs}); r.Kind != KindOK {
		t.Fatalf("RCTRANSBEGIN out %s %s (A) = %+v, want OK", hs, hs, r)
	}
	// session A's connection drops
	state.CloseSession(sessA.ID)

	sessB := state.NewSession()
	sessB.Role = bucket.RoleTransOut
	r := d.Exec(sessB, []string{"RCTRANSBEGIN", "out", hs, hs})
	if r.Kind != KindBulk || r.Bulk != "transfering" {
		t.Fatalf("RCTRANSBEGIN out %s %s (B, resumption) = %+v, want Bulk(transfering)", hs, hs, r)
	}
	if state.Buckets.Bucket(h).OwnerID != sessB.ID {
		t.Fatalf("bucket %d owner_id = %d, want session B's id %d", h, state.Buckets.Bucket(h).OwnerID, sessB.ID)
	}
}
