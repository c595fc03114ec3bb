// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package khash

import "testing"

// DefaultBuckets mirrors REDIS_HASH_BUCKETS from the reference C source.
const DefaultBuckets = 420000

func TestBucketStable(t *testing.T) {
	// Pinned against the reference recurrence in
	// original_source/tools/get_redis_hashval.c, run offline against the
	// same bytes: hashing is a pure function of the key bytes and must
	// reproduce bit-exact across peers and the offline tool.
	got := Bucket([]byte("foo"), DefaultBuckets)
	const want = 88823
	if got != want {
		t.Fatalf("Bucket(foo) = %d, want %d", got, want)
	}
}

func TestBucketSignExtendsHighBytes(t *testing.T) {
	// Pinned against the reference recurrence with a key containing
	// bytes >= 0x80: the C implementation reads key bytes through a
	// signed char, so 0xFF sign-extends to 0xFFFFFFFF rather than
	// zero-extending to 0x000000FF. A binary key exercises exactly the
	// byte range where the two disagree.
	got := Bucket([]byte{0, 1, 2, 255}, DefaultBuckets)
	const want = 149749
	if got != want {
		t.Fatalf("Bucket({0,1,2,255}) = %d, want %d", got, want)
	}
}

func TestBucketDeterministic(t *testing.T) {
	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte(""), []byte("x"), {0, 1, 2, 255}}
	for _, k := range keys {
		a := Bucket(k, DefaultBuckets)
		b := Bucket(append([]byte(nil), k...), DefaultBuckets)
		if a != b {
			t.Fatalf("Bucket(%v) not deterministic: %d != %d", k, a, b)
		}
		if a >= DefaultBuckets {
			t.Fatalf("Bucket(%v) = %d out of range [0,%d)", k, a, DefaultBuckets)
		}
	}
}

func TestBucketSurvivesDeleteReinsert(t *testing.T) {
	// Scenario 1 from the spec: GETHASHVAL foo is unaffected by DEL foo,
	// because the hash is a pure function of the key bytes, not of
	// whether the key currently exists.
	before := Bucket([]byte("foo"), DefaultBuckets)
	// Simulate "DEL foo" -- there is nothing to mutate, hashing takes no
	// dependency on keyspace state.
	after := Bucket([]byte("foo"), DefaultBuckets)
	if before != after {
		t.Fatalf("hash of foo changed: %d != %d", before, after)
	}
}

func TestBucketEmptyKeyDoesNotPanic(t *testing.T) {
	defer func() {
		if recover() != nil {
			t.Fatal("Bucket should not panic on empty key: key length >= 1 is enforced by callers")
		}
	}()
	Bucket([]byte{}, DefaultBuckets)
}

func TestBucketZeroCountPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Bucket(..., 0) should panic")
		}
	}()
	Bucket([]byte("foo"), 0)
}
