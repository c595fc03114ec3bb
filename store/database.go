// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package store implements the per-database keyspace: the primary
// key->value map, the expiry engine, the SCAN cursor, and
// rename/move (components D, E, G).
package store

import (
	"time"

	"golang.org/x/exp/rand"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
	"github.com/aristanetworks/keybucket/khash"
	"github.com/aristanetworks/keybucket/logger"
)

const randomKeyMaxRetries = 100

// Database is one numbered keyspace (SELECT id). Its bucket table is
// shared across every Database in the same server.State -- bucket
// assignment (hash(k) mod B) does not depend on which database a key
// lives in, only on the key bytes, so migration state is instance-wide
// while keys themselves are partitioned per database the usual way.
type Database struct {
	ID      int
	log     logger.Logger
	collab  *collab.Bundle
	primary *dict
	expires map[string]int64
	buckets *bucket.Table
}

// NewDatabase allocates an empty database numbered id, sharing buckets
// and collaborators with its siblings.
func NewDatabase(id int, buckets *bucket.Table, c *collab.Bundle, log logger.Logger) *Database {
	return &Database{
		ID:      id,
		log:     log,
		collab:  c,
		primary: newDict(),
		expires: make(map[string]int64),
		buckets: buckets,
	}
}

// Buckets returns the bucket table shared across this database's
// server, for RCTRANSBEGIN et al.
func (db *Database) Buckets() *bucket.Table { return db.buckets }

// Len reports the key count (DBSIZE).
func (db *Database) Len() int { return db.primary.Len() }

func (db *Database) bucketID(key string) uint32 {
	return khash.Bucket([]byte(key), db.buckets.Len())
}

// Now returns the database's current notion of time (frozen inside a
// scripting session, otherwise the collaborator clock): used by
// dispatch to turn EXPIRE/PEXPIRE's relative arguments into the
// absolute deadlines ExpireAt expects.
func (db *Database) Now() int64 { return db.now() }

func (db *Database) now() int64 {
	if db.collab.ScriptClock != nil {
		if frozen, active := db.collab.ScriptClock(); active {
			return frozen
		}
	}
	if db.collab.Clock != nil {
		return db.collab.Clock()
	}
	return time.Now().UnixMilli()
}

// Lookup implements lookup_read: it expires the key first, then returns
// its value, touching the LRU clock unless a background snapshot or
// write-ahead-log rewrite child is active (§4.2 copy-on-write
// preservation rule).
func (db *Database) Lookup(key string) (*Value, bool) {
	if db.ExpireIfNeeded(key) == Expired {
		return nil, false
	}
	e, ok := db.primary.Get(key)
	if !ok {
		return nil, false
	}
	v, _ := e.Value.(*Value)
	if v != nil && !db.collab.Snapshot() && !db.collab.RewriteChild() {
		v.lru = db.now()
	}
	return v, true
}

// Exists reports presence without returning the value.
func (db *Database) Exists(key string) bool {
	_, ok := db.Lookup(key)
	return ok
}

// Entry returns the raw KeyEntry backing key, after expiring it, for
// callers (bucket migration commands) that need the entry itself rather
// than its decoded Value.
func (db *Database) Entry(key string) (*bucket.Entry, bool) {
	if db.ExpireIfNeeded(key) == Expired {
		return nil, false
	}
	return db.primary.Get(key)
}

// Set upserts key. Per §4.2, overwriting an existing key clears any
// expiry (SET makes a key persistent) and replaces its value.
func (db *Database) Set(key string, v *Value) {
	db.ExpireIfNeeded(key)
	if e, ok := db.primary.Get(key); ok {
		delete(db.expires, key)
		e.Value = v
		return
	}
	e := &bucket.Entry{Key: []byte(key), Value: v, Flag: bucket.FlagNormal}
	db.buckets.Link(db.bucketID(key), e)
	db.primary.Set(key, e)
}

// Delete removes key from expires then primary, both idempotently, and
// unlinks it from its bucket.
func (db *Database) Delete(key string) bool {
	e, ok := db.primary.Get(key)
	if !ok {
		delete(db.expires, key)
		return false
	}
	delete(db.expires, key)
	db.primary.Delete(key)
	db.buckets.Unlink(e)
	return true
}

// Flush deletes every key in the database.
func (db *Database) Flush() {
	for i := uint64(0); i < uint64(len(db.primary.slots)); i++ {
		db.primary.scanSlot(i, func(_ string, e *bucket.Entry) {
			db.buckets.Unlink(e)
		})
	}
	db.primary = newDict()
	db.expires = make(map[string]int64)
}

// RandomKey samples a key from primary, lazily expiring and retrying on
// an evicted sample, per §4.2.
func (db *Database) RandomKey() (string, bool) {
	for i := 0; i < randomKeyMaxRetries; i++ {
		if db.primary.Len() == 0 {
			return "", false
		}
		start := uint64(rand.Uint32())
		key, _, ok := db.primary.AnyFrom(start)
		if !ok {
			return "", false
		}
		if db.ExpireIfNeeded(key) == Expired {
			continue
		}
		return key, true
	}
	return "", false
}

// TTLMillis reports the remaining lifetime of key in milliseconds:
// -2 if absent, -1 if it has no expiry, 0 if the deadline already
// passed but eviction hasn't run yet, otherwise the remaining ms.
func (db *Database) TTLMillis(key string) int64 {
	if !db.Exists(key) {
		return -2
	}
	deadline, ok := db.expires[key]
	if !ok {
		return -1
	}
	remaining := deadline - db.now()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpireAt sets key's absolute deadline in Unix milliseconds. A
// deadline already in the past triggers an immediate delete, per §4.3.
// The returned bool reports whether key existed.
func (db *Database) ExpireAt(key string, deadlineMillis int64) (bool, error) {
	if !db.Exists(key) {
		return false, nil
	}
	if deadlineMillis <= db.now() {
		db.expireNow(key)
		return true, nil
	}
	db.expires[key] = deadlineMillis
	return true, nil
}

// Persist removes key's expiry, reporting whether it had one.
func (db *Database) Persist(key string) bool {
	if !db.Exists(key) {
		return false
	}
	if _, ok := db.expires[key]; !ok {
		return false
	}
	delete(db.expires, key)
	return true
}
