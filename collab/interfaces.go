// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package collab names the narrow external-collaborator interfaces the
// keyspace core depends on but does not own: durable logging, follower
// propagation, keyspace event notification, the background-child/replica
// gates that bend the expiry engine's behavior, the clock, and glob
// matching. Concrete implementations live in kafkafeed (WAL, Followers)
// and in this package (NopKeyspaceEvents, LogEvents, StdGlob).
package collab

// WAL durably records a command after the core has already applied it.
// Implemented by kafkafeed.KafkaWAL.
type WAL interface {
	Append(dbID int, argv []string) error
}

// Followers forwards a command to replica subscribers. Implemented by
// kafkafeed.KafkaFollowers (Kafka) or kafkafeed.KCPFollowers (KCP transport).
type Followers interface {
	Feed(dbID int, argv []string) error
}

// KeyspaceEvents publishes a best-effort pub/sub notification. kind is
// "g"/"generic" style class, event is the event name ("expired", "del",
// "rename_from", ...).
type KeyspaceEvents interface {
	Publish(kind, event, key string, dbID int)
}

// SnapshotActive reports whether a background snapshot child is forked
// and running a copy-on-write save.
type SnapshotActive func() bool

// RewriteChildActive reports whether a background write-ahead-log
// rewrite child is forked and running.
type RewriteChildActive func() bool

// Clock returns the current time as Unix milliseconds.
type Clock func() int64

// ScriptFrozenClock returns a frozen "now" and true while a scripting
// session is executing, so that expiry observed within one script run is
// atomic; it returns (0, false) outside of a script.
type ScriptFrozenClock func() (int64, bool)

// FollowerOf reports whether this instance currently replicates from a
// leader. Followers never self-evict expired keys (§4.3 step 4); they
// wait for the leader's replicated DEL.
type FollowerOf func() bool

// GlobMatcher reports whether text matches pattern, Redis KEYS/SCAN
// MATCH glob semantics (implemented by StdGlob).
type GlobMatcher func(pattern, text string) bool
