// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"testing"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
)

func newDB(t *testing.T) *Database {
	t.Helper()
	return NewDatabase(0, bucket.NewTable(16), collab.Default(func() int64 { return 0 }), nil)
}

func TestSetOverwriteClearsExpiry(t *testing.T) {
	db := newDB(t)
	db.Set("k", NewRawValue([]byte("v1")))
	if _, err := db.ExpireAt("k", 1_000_000); err != nil {
		t.Fatalf("ExpireAt: %v", err)
	}
	if db.TTLMillis("k") == -1 {
		t.Fatal("expected an expiry to be set")
	}
	db.Set("k", NewRawValue([]byte("v2")))
	if got := db.TTLMillis("k"); got != -1 {
		t.Fatalf("TTLMillis after overwrite = %d, want -1 (SET makes a key persistent)", got)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := newDB(t)
	db.Set("k", NewRawValue([]byte("v")))
	if !db.Delete("k") {
		t.Fatal("first Delete should report true")
	}
	if db.Delete("k") {
		t.Fatal("second Delete should report false")
	}
}

func TestValueUnshare(t *testing.T) {
	shared := &Value{Encoding: EncodingShared, Refcount: 2, Data: []byte("hello")}
	priv := shared.Unshare()
	if priv == shared {
		t.Fatal("Unshare of a shared value must return a private copy")
	}
	priv.Data[0] = 'H'
	if shared.Data[0] == 'H' {
		t.Fatal("mutating the unshared copy must not affect the original")
	}

	raw := NewRawValue([]byte("world"))
	if raw.Unshare() != raw {
		t.Fatal("Unshare of an already-unique raw value should return itself")
	}
}

func TestRenameTransplantsExpiry(t *testing.T) {
	db := newDB(t)
	db.Set("src", NewRawValue([]byte("v")))
	if _, err := db.ExpireAt("src", 5000); err != nil {
		t.Fatalf("ExpireAt: %v", err)
	}
	if err := db.Rename("src", "dst"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if db.Exists("src") {
		t.Fatal("src should be gone after rename")
	}
	if got := db.TTLMillis("dst"); got != 5000 {
		t.Fatalf("TTLMillis(dst) = %d, want 5000", got)
	}
}

func TestRenameNXRefusesExistingDst(t *testing.T) {
	db := newDB(t)
	db.Set("src", NewRawValue([]byte("v")))
	db.Set("dst", NewRawValue([]byte("v2")))
	ok, err := db.RenameNX("src", "dst")
	if err != nil {
		t.Fatalf("RenameNX: %v", err)
	}
	if ok {
		t.Fatal("RenameNX should refuse when dst exists")
	}
}

func TestMoveDropsExpiry(t *testing.T) {
	shared := bucket.NewTable(16)
	bundle := collab.Default(func() int64 { return 0 })
	src := NewDatabase(0, shared, bundle, nil)
	dst := NewDatabase(1, shared, bundle, nil)

	src.Set("k", NewRawValue([]byte("v")))
	if _, err := src.ExpireAt("k", 5000); err != nil {
		t.Fatalf("ExpireAt: %v", err)
	}
	if err := src.Move(dst, "k"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if src.Exists("k") {
		t.Fatal("k should be gone from src after Move")
	}
	if !dst.Exists("k") {
		t.Fatal("k should exist in dst after Move")
	}
	if got := dst.TTLMillis("k"); got != -1 {
		t.Fatalf("TTLMillis(k) in dst = %d, want -1 (expiry dropped on MOVE)", got)
	}
}

func TestMoveRefusesSameDatabase(t *testing.T) {
	db := newDB(t)
	db.Set("k", NewRawValue([]byte("v")))
	if err := db.Move(db, "k"); err == nil {
		t.Fatal("Move into the same database should be refused")
	}
}

func TestRandomKeyEmptyDatabase(t *testing.T) {
	db := newDB(t)
	if _, ok := db.RandomKey(); ok {
		t.Fatal("RandomKey on an empty database should report false")
	}
}

func TestRandomKeySkipsExpired(t *testing.T) {
	db := newDB(t)
	db.Set("alive", NewRawValue([]byte("v")))
	db.Set("dead", NewRawValue([]byte("v")))
	if _, err := db.ExpireAt("dead", -1); err != nil {
		t.Fatalf("ExpireAt: %v", err)
	}
	key, ok := db.RandomKey()
	if !ok || key != "alive" {
		t.Fatalf("RandomKey = (%q, %v), want (alive, true)", key, ok)
	}
}
