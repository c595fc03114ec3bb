// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

// dict is the primary key -> *bucket.Entry table backing a Database. It
// is adapted from the teacher's generic hash.Map (hash/map.go): the
// same bucket-of-8-slots-plus-overflow-chain layout, specialized to a
// string key and a *bucket.Entry element so that dict.Scan (cursor.go) can
// walk it bucket-by-bucket the way hash.Map's Iterator walks its
// buckets.
//
// Unlike hash.Map, dict grows by a single synchronous rehash rather than
// incremental evacuation: the core is single-threaded and cooperative
// (§5), so there is no latency budget being protected by spreading a
// grow across many operations, and dropping the incremental evacuation
// machinery keeps the reverse-binary-increment cursor logic in
// cursor.go free of "check the old table too" bookkeeping.

import (
	"hash/maphash"

	"github.com/aristanetworks/keybucket/bucket"
)

const (
	dictBucketCnt  = 8
	dictEmptyRest  = 0
	dictEmptyOne   = 1
	dictMinTopHash = 2
)

var dictSeed = maphash.MakeSeed()

func dictHash(k string) uint64 {
	var h maphash.Hash
	h.SetSeed(dictSeed)
	h.WriteString(k)
	return h.Sum64()
}

func dictTophash(h uint64) uint8 {
	top := uint8(h >> 56)
	if top < dictMinTopHash {
		top += dictMinTopHash
	}
	return top
}

type dictSlot struct {
	tophash [dictBucketCnt]uint8
	keys    [dictBucketCnt]string
	elems   [dictBucketCnt]*bucket.Entry
	overflow *dictSlot
}

func dictIsEmpty(x uint8) bool {
	return x <= dictEmptyOne
}

// dict is not safe for concurrent use; every caller in this module runs
// on the single command executor (§5).
type dict struct {
	count   int
	slots   []dictSlot
}

func newDict() *dict {
	return &dict{slots: make([]dictSlot, 1)}
}

func (d *dict) Len() int { return d.count }

func (d *dict) mask() uint64 { return uint64(len(d.slots) - 1) }

func (d *dict) Get(key string) (*bucket.Entry, bool) {
	if d.count == 0 {
		return nil, false
	}
	h := dictHash(key)
	top := dictTophash(h)
	s := &d.slots[h&d.mask()]
	for ; s != nil; s = s.overflow {
		for i := 0; i < dictBucketCnt; i++ {
			if s.tophash[i] != top {
				if s.tophash[i] == dictEmptyRest {
					return nil, false
				}
				continue
			}
			if s.keys[i] == key {
				return s.elems[i], true
			}
		}
	}
	return nil, false
}

func (d *dict) Set(key string, e *bucket.Entry) {
	h := dictHash(key)
	if float64(d.count+1) > 0.85*float64(len(d.slots)*dictBucketCnt) {
		d.grow()
	}
	d.insert(h, key, e)
}

func (d *dict) insert(h uint64, key string, e *bucket.Entry) {
	top := dictTophash(h)
	s := &d.slots[h&d.mask()]
	var insertSlot *dictSlot
	var insertIdx int
	haveInsert := false
	for {
		for i := 0; i < dictBucketCnt; i++ {
			if s.tophash[i] != top {
				if dictIsEmpty(s.tophash[i]) && !haveInsert {
					insertSlot, insertIdx, haveInsert = s, i, true
				}
				if s.tophash[i] == dictEmptyRest {
					goto insert
				}
				continue
			}
			if s.keys[i] == key {
				s.elems[i] = e
				return
			}
		}
		if s.overflow == nil {
			break
		}
		s = s.overflow
	}
insert:
	if !haveInsert {
		s.overflow = &dictSlot{}
		insertSlot, insertIdx = s.overflow, 0
	}
	insertSlot.tophash[insertIdx] = top
	insertSlot.keys[insertIdx] = key
	insertSlot.elems[insertIdx] = e
	d.count++
}

func (d *dict) Delete(key string) {
	if d.count == 0 {
		return
	}
	h := dictHash(key)
	top := dictTophash(h)
	s := &d.slots[h&d.mask()]
	for ; s != nil; s = s.overflow {
		for i := 0; i < dictBucketCnt; i++ {
			if s.tophash[i] != top {
				if s.tophash[i] == dictEmptyRest {
					return
				}
				continue
			}
			if s.keys[i] != key {
				continue
			}
			s.tophash[i] = dictEmptyOne
			var zero string
			s.keys[i] = zero
			s.elems[i] = nil
			d.count--
			return
		}
	}
}

func (d *dict) grow() {
	old := d.slots
	d.slots = make([]dictSlot, len(old)*2)
	d.count = 0
	for i := range old {
		for s := &old[i]; s != nil; s = s.overflow {
			for j := 0; j < dictBucketCnt; j++ {
				if dictIsEmpty(s.tophash[j]) {
					continue
				}
				d.insert(dictHash(s.keys[j]), s.keys[j], s.elems[j])
			}
		}
	}
}

// AnyFrom returns one live key/entry pair, scanning slots starting at
// start (mod table size) and wrapping once. Used by RANDOMKEY: the
// caller supplies a randomized start so repeated calls don't always
// land on the same key.
func (d *dict) AnyFrom(start uint64) (string, *bucket.Entry, bool) {
	n := uint64(len(d.slots))
	if d.count == 0 {
		return "", nil, false
	}
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		for s := &d.slots[idx]; s != nil; s = s.overflow {
			for j := 0; j < dictBucketCnt; j++ {
				if !dictIsEmpty(s.tophash[j]) {
					return s.keys[j], s.elems[j], true
				}
			}
		}
	}
	return "", nil, false
}

// scanSlot calls visit for every live entry linked into slots[index]
// (including its overflow chain). Used by dict.Scan; see cursor.go for the
// reverse-binary-increment stepping that makes this resize-tolerant.
func (d *dict) scanSlot(index uint64, visit func(string, *bucket.Entry)) {
	if index >= uint64(len(d.slots)) {
		return
	}
	for s := &d.slots[index]; s != nil; s = s.overflow {
		for i := 0; i < dictBucketCnt; i++ {
			if !dictIsEmpty(s.tophash[i]) {
				visit(s.keys[i], s.elems[i])
			}
		}
	}
}
