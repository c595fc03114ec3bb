// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package bucket

// Entry is a KeyEntry: it owns the key bytes, holds the value handle
// (opaque to this package -- the core only ever observes a type tag and
// refcount, never contents, see store.Value), the per-key migration
// flag, and the forward pointer used for intrusive membership in
// exactly one Bucket's list.
//
// A plain pointer field is used for the link rather than a bucket-id +
// index-within-bucket pair: Go's GC makes the pointer form idiomatic,
// and it mirrors the overflow *bucket field the teacher's generic
// hash.Map uses for the same "singly linked within a slot" shape.
type Entry struct {
	Key   []byte
	Value interface{}
	Flag  Flag

	next     *Entry
	bucketID uint32
}

// BucketID returns the bucket this entry is currently linked into.
func (e *Entry) BucketID() uint32 {
	return e.bucketID
}

// Bucket is one of the B fixed migration slots. It owns a singly linked
// list of the KeyEntries currently hashed to it, the list's length, its
// migration status, and at most one locked key (invariant 5).
type Bucket struct {
	Status Status

	listHead *Entry
	keys     int

	OwnerID OwnerID

	// LockedEntry and LockedAbsentKey are mutually exclusive (invariant
	// 5): a bucket holds at most one locked key, whether that key
	// currently exists (LockedEntry references it directly) or not yet
	// (LockedAbsentKey is an owned copy of the name reserved ahead of
	// its creation).
	LockedEntry     *Entry
	LockedAbsentKey []byte
}

// Keys reports the number of entries linked into this bucket's list.
func (b *Bucket) Keys() int {
	return b.keys
}

// Each calls fn for every entry linked into the bucket, head first. fn
// must not mutate bucket linkage; use Table.Unlink from the caller if a
// key needs removing mid-iteration (collect first, then unlink).
func (b *Bucket) Each(fn func(*Entry)) {
	for e := b.listHead; e != nil; e = e.next {
		fn(e)
	}
}

// Table is the fixed array of B bucket control blocks. It is invariant
// in size for the lifetime of the process (§3): B never changes after
// NewTable.
type Table struct {
	buckets []Bucket
}

// NewTable allocates a table of b buckets, all IN_USING.
func NewTable(b uint32) *Table {
	return &Table{buckets: make([]Bucket, b)}
}

// Len returns the bucket count B.
func (t *Table) Len() uint32 {
	return uint32(len(t.buckets))
}

// Bucket returns the control block for id. Panics if id is out of
// range; callers must bounds-check with Len first (dispatch does this
// uniformly so every command rejects out-of-range ids the same way).
func (t *Table) Bucket(id uint32) *Bucket {
	return &t.buckets[id]
}

// Link inserts e at the head of bucket id's list and increments its key
// count. e must not already be linked anywhere.
func (t *Table) Link(id uint32, e *Entry) {
	b := &t.buckets[id]
	e.next = b.listHead
	e.bucketID = id
	b.listHead = e
	b.keys++
}

// Unlink removes e from its bucket's list and decrements the key count.
// It is a no-op if e is not linked (next pointers all nil and e isn't
// the head) which should never legitimately happen; callers only call
// it for entries they just looked up in the primary map.
func (t *Table) Unlink(e *Entry) {
	b := &t.buckets[e.bucketID]
	if b.listHead == e {
		b.listHead = e.next
		b.keys--
		e.next = nil
		return
	}
	for p := b.listHead; p != nil; p = p.next {
		if p.next == e {
			p.next = e.next
			b.keys--
			e.next = nil
			return
		}
	}
}

// AllInUsing reports whether every bucket in the table is IN_USING.
// Used to decide when server_in_transfer can be cleared after
// resetbuckets.
func (t *Table) AllInUsing() bool {
	for i := range t.buckets {
		if t.buckets[i].Status != StatusInUsing {
			return false
		}
	}
	return true
}
