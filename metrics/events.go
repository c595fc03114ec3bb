// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metrics

import "github.com/aristanetworks/keybucket/collab"

// KeyspaceEvents wraps another collab.KeyspaceEvents, incrementing the
// expired-key counter for every "expired" publish before delegating.
type KeyspaceEvents struct {
	Next collab.KeyspaceEvents
}

// Publish implements collab.KeyspaceEvents.
func (e KeyspaceEvents) Publish(kind, event, key string, dbID int) {
	if event == "expired" {
		ExpiredKey()
	}
	if e.Next != nil {
		e.Next.Publish(kind, event, key, dbID)
	}
}
