// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import "github.com/aristanetworks/keybucket/kerrors"

// Rename implements RENAME (§4.7): src must exist; if dst exists it is
// deleted first. The value's expiry, if any, is transplanted to dst.
// Rename is not atomic with respect to the migration engine: if src or
// dst resides in a non-IN_USING bucket, this does not refuse the
// operation -- higher-level orchestration owns avoiding that.
func (db *Database) Rename(src, dst string) error {
	if db.ExpireIfNeeded(src) == Expired {
		return kerrors.NewKeyNotFound(src)
	}
	e, ok := db.primary.Get(src)
	if !ok {
		return kerrors.NewKeyNotFound(src)
	}
	if dst != src {
		db.ExpireIfNeeded(dst)
		db.Delete(dst)
	}
	deadline, hadExpire := db.expires[src]

	db.buckets.Unlink(e)
	db.primary.Delete(src)
	delete(db.expires, src)

	e.Key = []byte(dst)
	db.buckets.Link(db.bucketID(dst), e)
	db.primary.Set(dst, e)
	if hadExpire {
		db.expires[dst] = deadline
	}
	return nil
}

// RenameNX implements RENAMENX: refuses when dst already exists, and
// reports whether the rename happened.
func (db *Database) RenameNX(src, dst string) (bool, error) {
	if db.ExpireIfNeeded(src) == Expired {
		return false, kerrors.NewKeyNotFound(src)
	}
	if _, ok := db.primary.Get(src); !ok {
		return false, kerrors.NewKeyNotFound(src)
	}
	if src == dst {
		return false, nil
	}
	db.ExpireIfNeeded(dst)
	if _, ok := db.primary.Get(dst); ok {
		return false, nil
	}
	return true, db.Rename(src, dst)
}

// Move implements MOVE (§4.7): refuses if db and dst are the same
// database, if key is absent from db, or if key already exists in dst.
// Per the resolved Open Question (DESIGN.md), expiry is dropped on
// move, matching the reference implementation's behavior exactly.
func (db *Database) Move(dst *Database, key string) error {
	if db == dst || db.ID == dst.ID {
		return kerrors.NewInvalidArgument("source and destination databases are the same")
	}
	if db.ExpireIfNeeded(key) == Expired {
		return kerrors.NewKeyNotFound(key)
	}
	e, ok := db.primary.Get(key)
	if !ok {
		return kerrors.NewKeyNotFound(key)
	}
	dst.ExpireIfNeeded(key)
	if _, exists := dst.primary.Get(key); exists {
		return kerrors.NewDuplicateTarget(key)
	}

	db.buckets.Unlink(e)
	db.primary.Delete(key)
	delete(db.expires, key)

	dst.buckets.Link(dst.bucketID(key), e)
	dst.primary.Set(key, e)
	return nil
}
