// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package collab

// Bundle aggregates every collaborator a Database needs. server.State
// owns exactly one Bundle and shares it across every store.Database it
// creates, so kafkafeed/metrics wiring happens once at startup instead
// of per-database.
type Bundle struct {
	WAL         WAL
	Followers   Followers
	Events      KeyspaceEvents
	Snapshot    SnapshotActive
	RewriteChild RewriteChildActive
	Clock       Clock
	ScriptClock ScriptFrozenClock
	FollowerOf  FollowerOf
	Glob        GlobMatcher
}

// Default returns a Bundle with inert defaults: no WAL/follower feed, a
// no-op event sink, clock as the Clock (a nil clock leaves Clock nil,
// and store.Database then reads the wall clock), never-snapshotting/never-script
// gates, and StdGlob. Callers override whichever fields kafkafeed and
// server.Config actually wire up.
func Default(clock Clock) *Bundle {
	return &Bundle{
		Events:      NopKeyspaceEvents{},
		Snapshot:    func() bool { return false },
		RewriteChild: func() bool { return false },
		Clock:       clock,
		ScriptClock: func() (int64, bool) { return 0, false },
		FollowerOf:  func() bool { return false },
		Glob:        StdGlob,
	}
}
