// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"math/bits"

	"github.com/aristanetworks/keybucket/bucket"
)

// nextCursor advances a SCAN cursor by the reverse-binary-increment
// technique (§4.6): treat v as a binary counter whose bits are reversed,
// increment it, reverse back. This is the same trick Redis's dictScan
// uses so that a cursor computed against a smaller table remains valid
// -- continuing to visit every slot that existed for the whole scan --
// after the table has grown or shrunk by a power of two.
func nextCursor(v, mask uint64) uint64 {
	v |= ^mask
	v = bits.Reverse64(v)
	v++
	v = bits.Reverse64(v)
	return v
}

// Scan implements one step of SCAN/HASHKEYS-style cursor iteration over
// d: it visits every live entry in the bucket addressed by cursor, then
// returns the next cursor. A returned cursor of 0 means the scan has
// covered the whole table; the caller starts the next fresh scan from 0
// too, so 0 serves as both "begin" and "done" the way §4.6 specifies.
func (d *dict) Scan(cursor uint64, visit func(string, *bucket.Entry)) uint64 {
	mask := d.mask()
	d.scanSlot(cursor&mask, visit)
	return nextCursor(cursor, mask)
}

// ScanResult is one page of a Database Scan call.
type ScanResult struct {
	Cursor uint64
	Keys   []string
}

// Scan implements the SCAN command (§4.6): count is a soft hint on how
// many keys to try to return, match is an optional glob filter, and
// work is bounded at 10*count inner dict-bucket visits so a sparse or
// heavily-filtered table can't make one call run unbounded. Expired
// keys encountered mid-scan are evicted (if this is the leader) or
// skipped (if a follower) and never returned.
func (db *Database) Scan(cursor uint64, count int, match string) ScanResult {
	if count <= 0 {
		count = 10
	}
	limit := 10 * count
	var keys []string
	visited := 0
	for {
		cursor = db.primary.Scan(cursor, func(k string, e *bucket.Entry) {
			if db.ExpireIfNeeded(k) == Expired {
				return
			}
			if match != "" && db.collab.Glob != nil && !db.collab.Glob(match, k) {
				return
			}
			keys = append(keys, k)
		})
		visited++
		if cursor == 0 || len(keys) >= count || visited >= limit {
			break
		}
	}
	return ScanResult{Cursor: cursor, Keys: keys}
}
