// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

// Encoding is a value's storage encoding. The core only ever observes
// this tag, never the encoded contents -- value-type internals are out
// of scope (§1).
type Encoding uint8

const (
	// EncodingRaw is a private, directly mutable byte buffer.
	EncodingRaw Encoding = iota
	// EncodingShared marks a value sharing storage with another Value
	// (or with an interned immutable constant); it must be unshared
	// before in-place mutation.
	EncodingShared
)

// Value is the opaque value handle stored in a bucket.Entry. Database
// only manipulates Refcount and Encoding; Data is carried through
// verbatim.
type Value struct {
	Encoding Encoding
	Refcount int32
	Data     []byte

	lru int64
}

// NewRawValue wraps data as a freshly-owned raw value.
func NewRawValue(data []byte) *Value {
	return &Value{Encoding: EncodingRaw, Refcount: 1, Data: data}
}

// Unshare returns a Value safe to mutate in place: itself if already
// uniquely-owned raw storage, otherwise a private raw copy (§4.2 "copy
// on write string unshare").
func (v *Value) Unshare() *Value {
	if v.Refcount <= 1 && v.Encoding == EncodingRaw {
		return v
	}
	cp := make([]byte, len(v.Data))
	copy(cp, v.Data)
	return &Value{Encoding: EncodingRaw, Refcount: 1, Data: cp}
}
