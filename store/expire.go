// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

// ExpireStatus is the outcome of an expiry check.
type ExpireStatus int

const (
	// Alive means the key either has no expiry or has not reached it.
	Alive ExpireStatus = iota
	// Expired means the key's deadline has passed; on a leader, the key
	// has already been deleted and propagated by the time this is
	// returned.
	Expired
)

// ExpireIfNeeded implements expire_if_needed (§4.3). Every read and
// write path calls this before touching a key.
func (db *Database) ExpireIfNeeded(key string) ExpireStatus {
	deadline, ok := db.expires[key]
	if !ok {
		return Alive
	}
	// A background snapshot (save or load) owns expiry ordering for the
	// keys it's replaying; don't race it.
	if db.collab.Snapshot != nil && db.collab.Snapshot() {
		return Alive
	}
	now := db.now()
	if db.collab.FollowerOf != nil && db.collab.FollowerOf() {
		// Followers never self-evict: report truthfully but let the
		// leader's replicated DEL perform the actual eviction.
		if now > deadline {
			return Expired
		}
		return Alive
	}
	if now <= deadline {
		return Alive
	}
	db.expireNow(key)
	return Expired
}

// expireNow performs the leader-side eviction side effects: delete the
// key, propagate a synthetic DEL to the write-ahead log and followers,
// and publish an "expired" keyspace event.
func (db *Database) expireNow(key string) {
	if e, ok := db.primary.Get(key); ok {
		db.buckets.Unlink(e)
		db.primary.Delete(key)
	}
	delete(db.expires, key)
	if db.collab.WAL != nil {
		db.collab.WAL.Append(db.ID, []string{"DEL", key})
	}
	if db.collab.Followers != nil {
		db.collab.Followers.Feed(db.ID, []string{"DEL", key})
	}
	if db.collab.Events != nil {
		db.collab.Events.Publish("g", "expired", key, db.ID)
	}
}
