// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package bucket

import (
	"bytes"

	"github.com/aristanetworks/keybucket/kerrors"
)

// TransBegin validates and executes RCTRANSBEGIN for buckets [start,end].
//
// stillOwned is consulted only for the single-bucket resumption case: it
// reports whether some other currently-connected session still claims
// ownership of the given owner id with a migration role. The bucket
// package has no notion of sessions or connections, so this is supplied
// by the caller (server.State keeps the session registry).
//
// resumed reports whether this call took the "adopt an orphaned bucket"
// path (§4.5); the dispatcher replies "transfering" in that case and
// "OK" otherwise.
func (t *Table) TransBegin(dir Direction, start, end uint32, role Role, session OwnerID,
	stillOwned func(owner OwnerID) bool) (resumed bool, err error) {

	if !(role == RoleTransOut || role == RoleTransIn || role == RoleTransSlave) {
		return false, wrongRoleFor("RCTRANSBEGIN", dir)
	}
	if start > end || end >= t.Len() {
		return false, kerrors.NewInvalidArgument("invalid bucket range [%d,%d]", start, end)
	}
	wantDirRole := dir == DirectionOut && role == RoleTransOut ||
		dir == DirectionIn && role == RoleTransIn || role == RoleTransSlave
	if !wantDirRole {
		return false, wrongRoleFor("RCTRANSBEGIN", dir)
	}

	target := StatusTransferOut
	if dir == DirectionIn {
		target = StatusTransferIn
	}

	// Single-bucket resumption: a reconnecting coordinator re-issues
	// transbegin for a bucket it (or a now-dead peer session) already
	// owns.
	if start == end {
		b := &t.buckets[start]
		if b.Status == target && !stillOwned(b.OwnerID) {
			b.OwnerID = session
			return true, nil
		}
	}

	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		switch b.Status {
		case StatusInUsing:
			// eligible, transitioned below
		case StatusTransferIn, StatusTransferOut:
			return false, kerrors.NewBucketStateViolation(id,
				"already %s", b.Status)
		case StatusTransferred:
			if dir == DirectionIn {
				return false, kerrors.NewBucketStateViolation(id,
					"already %s", b.Status)
			}
		}
	}

	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		if b.Status == StatusInUsing {
			b.Status = target
			if role == RoleTransSlave {
				b.OwnerID = InitID
			} else {
				b.OwnerID = session
			}
		}
	}
	return false, nil
}

// TransEnd validates and executes RCTRANSEND for buckets [start,end].
func (t *Table) TransEnd(dir Direction, start, end uint32, role Role) error {
	if !(role == RoleTransOut || role == RoleTransIn || role == RoleTransSlave) {
		return wrongRoleFor("RCTRANSEND", dir)
	}
	wantDirRole := dir == DirectionOut && role == RoleTransOut ||
		dir == DirectionIn && role == RoleTransIn || role == RoleTransSlave
	if !wantDirRole {
		return wrongRoleFor("RCTRANSEND", dir)
	}
	if start > end || end >= t.Len() {
		return kerrors.NewInvalidArgument("invalid bucket range [%d,%d]", start, end)
	}

	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		if dir == DirectionOut {
			if b.Status != StatusTransferOut && b.Status != StatusTransferred {
				return kerrors.NewBucketStateViolation(id,
					"not in TRANSFER_OUT (is %s)", b.Status)
			}
			if b.keys != 0 {
				return kerrors.NewBucketStateViolation(id,
					"still has %d keys", b.keys)
			}
			var bad error
			b.Each(func(e *Entry) {
				if bad == nil && e.Flag != FlagTransferred {
					bad = kerrors.NewBucketStateViolation(id,
						"key %q not yet TRANSFERRED", e.Key)
				}
			})
			if bad != nil {
				return bad
			}
		} else {
			if b.Status != StatusTransferIn {
				return kerrors.NewBucketStateViolation(id,
					"not in TRANSFER_IN (is %s)", b.Status)
			}
			var bad error
			b.Each(func(e *Entry) {
				if bad == nil && e.Flag != FlagNormal {
					bad = kerrors.NewBucketStateViolation(id,
						"key %q not yet NORMAL", e.Key)
				}
			})
			if bad != nil {
				return bad
			}
		}
	}

	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		if dir == DirectionOut {
			b.Status = StatusTransferred
		} else {
			b.Status = StatusInUsing
		}
		b.OwnerID = InitID
	}
	return nil
}

// ResetBuckets validates and executes RCRESETBUCKETS for [start,end].
// allInUsing reports whether, after this call, every bucket in the
// table is IN_USING (the caller uses this to clear server_in_transfer).
func (t *Table) ResetBuckets(start, end uint32, role Role) (allInUsing bool, err error) {
	if role != RoleTransOut && role != RoleTransSlave {
		return false, kerrors.NewWrongRole("RCRESETBUCKETS", "TRANS_OUT", "TRANS_SLAVE")
	}
	if start > end || end >= t.Len() {
		return false, kerrors.NewInvalidArgument("invalid bucket range [%d,%d]", start, end)
	}
	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		if b.Status != StatusTransferred {
			return false, kerrors.NewBucketStateViolation(id, "not TRANSFERRED (is %s)", b.Status)
		}
		if b.keys != 0 {
			return false, kerrors.NewBucketStateViolation(id, "still has %d keys", b.keys)
		}
	}
	for id := start; id <= end; id++ {
		b := &t.buckets[id]
		b.Status = StatusInUsing
		b.OwnerID = InitID
	}
	return t.AllInUsing(), nil
}

// SetBucketStatus implements RCSETBUCKETSTATUS, the follower replay
// path. Per the resolved Open Question (see DESIGN.md), it accepts every
// edge a follower can legitimately observe while replaying a leader's
// command stream, not only the reference implementation's
// IN_USING-only origin.
func (t *Table) SetBucketStatus(id uint32, status Status, role Role) error {
	if role != RoleTransSlave {
		return kerrors.NewWrongRole("RCSETBUCKETSTATUS", "TRANS_SLAVE")
	}
	if id >= t.Len() {
		return kerrors.NewInvalidArgument("bucket %d out of range [0,%d)", id, t.Len())
	}
	if !ValidStatus(status) {
		return kerrors.NewInvalidArgument("invalid bucket status %d", status)
	}
	b := &t.buckets[id]
	legal := map[Status][]Status{
		StatusInUsing:     {StatusTransferIn, StatusTransferOut},
		StatusTransferOut: {StatusTransferred},
		StatusTransferIn:  {StatusInUsing},
		StatusTransferred: {StatusInUsing},
	}
	for _, to := range legal[b.Status] {
		if to == status {
			b.Status = status
			if status == StatusTransferIn || status == StatusTransferOut {
				b.OwnerID = InitID
			}
			return nil
		}
	}
	return kerrors.NewBucketStateViolation(id, "%s -> %s is not a legal replay transition",
		b.Status, status)
}

// LockOutcome is the result of a successful LockKey call.
type LockOutcome int

const (
	// LockCreated means a fresh lock was taken; reply OK.
	LockCreated LockOutcome = iota
	// LockAlreadyHeld means the key was already TRANSFERING in this
	// bucket (idempotent re-lock); reply "locked".
	LockAlreadyHeld
)

// LockKey implements RCLOCKKEY. entry is the KeyEntry already resolved
// by the caller from the primary map (nil if key does not exist).
func (t *Table) LockKey(id uint32, key []byte, entry *Entry) (LockOutcome, error) {
	b := &t.buckets[id]
	if b.Status == StatusInUsing {
		return 0, kerrors.NewBucketStateViolation(id, "bucket is IN_USING, not in transfer")
	}
	if entry != nil {
		switch entry.Flag {
		case FlagNormal:
			if name, locked := lockedName(b); locked {
				return 0, kerrors.NewAlreadyLocked(name)
			}
			entry.Flag = FlagTransfering
			b.LockedEntry = entry
			return LockCreated, nil
		case FlagTransfering:
			return LockAlreadyHeld, nil
		default: // FlagTransferred
			return 0, kerrors.NewKeyNotFound(string(key))
		}
	}
	if name, locked := lockedName(b); locked {
		return 0, kerrors.NewAlreadyLocked(name)
	}
	b.LockedAbsentKey = append([]byte(nil), key...)
	return LockCreated, nil
}

// UnlockKey implements RCUNLOCKKEY. entry is the KeyEntry already
// resolved by the caller (nil if key does not exist).
func (t *Table) UnlockKey(id uint32, key []byte, entry *Entry) error {
	b := &t.buckets[id]
	if entry != nil && entry.Flag == FlagTransfering && b.LockedEntry == entry {
		entry.Flag = FlagNormal
		b.LockedEntry = nil
		return nil
	}
	if entry == nil && b.LockedAbsentKey != nil && bytes.Equal(b.LockedAbsentKey, key) {
		b.LockedAbsentKey = nil
		return nil
	}
	if entry == nil {
		return kerrors.NewKeyNotFound(string(key))
	}
	return kerrors.NewBucketStateViolation(id, "key %q is not locked in this bucket", key)
}

// MarkTransferred completes the out-side half of RCTRANSENDKEY on an
// existing, locked entry: it flips the flag and releases the bucket's
// lock. It does not delete the entry from any keyspace map or propagate
// anything -- that orchestration belongs to store.Database, which also
// owns the primary/expiry maps and the WAL/follower collaborators.
func (t *Table) MarkTransferred(id uint32, entry *Entry) error {
	b := &t.buckets[id]
	if entry.Flag != FlagTransfering || b.LockedEntry != entry {
		return kerrors.NewBucketStateViolation(id, "key %q is not TRANSFERING", entry.Key)
	}
	entry.Flag = FlagTransferred
	b.LockedEntry = nil
	return nil
}

// ReleaseAbsentLock completes RCTRANSENDKEY for a key that was locked
// before it ever existed.
func (t *Table) ReleaseAbsentLock(id uint32, key []byte) error {
	b := &t.buckets[id]
	if b.LockedAbsentKey == nil || !bytes.Equal(b.LockedAbsentKey, key) {
		return kerrors.NewKeyNotFound(string(key))
	}
	b.LockedAbsentKey = nil
	return nil
}

func lockedName(b *Bucket) (string, bool) {
	if b.LockedEntry != nil {
		return string(b.LockedEntry.Key), true
	}
	if b.LockedAbsentKey != nil {
		return string(b.LockedAbsentKey), true
	}
	return "", false
}

func wrongRoleFor(command string, dir Direction) *kerrors.Error {
	if dir == DirectionOut {
		return kerrors.NewWrongRole(command, "TRANS_OUT", "TRANS_SLAVE")
	}
	return kerrors.NewWrongRole(command, "TRANS_IN", "TRANS_SLAVE")
}
