// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package server

import "github.com/aristanetworks/keybucket/bucket"

// Session is a connected client's migration-relevant state: its id (the
// owner_id recorded on buckets it drives a transfer of), its role, and
// the database index SELECTed.
type Session struct {
	ID   bucket.OwnerID
	Role bucket.Role
	DB   int
}
