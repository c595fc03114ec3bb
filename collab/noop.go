// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package collab

import "github.com/aristanetworks/keybucket/logger"

// NopKeyspaceEvents discards every event. Used when no pub/sub
// subscriber is configured.
type NopKeyspaceEvents struct{}

// Publish implements KeyspaceEvents.
func (NopKeyspaceEvents) Publish(kind, event, key string, dbID int) {}

// LogEvents publishes each event as an Info log line through Log,
// instead of a real pub/sub fan-out. Useful for a standalone
// keybucketd with no subscribers yet wired, and for tests.
type LogEvents struct {
	Log logger.Logger
}

// Publish implements KeyspaceEvents.
func (e LogEvents) Publish(kind, event, key string, dbID int) {
	if e.Log == nil {
		return
	}
	e.Log.Infof("keyspace event: db=%d kind=%s event=%s key=%q", dbID, kind, event, key)
}
