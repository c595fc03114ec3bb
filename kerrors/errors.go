// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package kerrors defines the typed error kinds raised by the keyspace
// core (bucket, store, server and dispatch packages).
package kerrors

import "fmt"

// Kind identifies the category of a keyspace error.
type Kind string

const (
	// KindInvalidArgument covers bad cursors, bad db ids, non-numeric
	// arguments where numeric is expected, and out-of-range bucket ids
	// or ranges.
	KindInvalidArgument Kind = "invalid_argument"
	// KindWrongRole is raised when a command is issued by a client
	// whose role does not permit it.
	KindWrongRole Kind = "wrong_role"
	// KindBucketStateViolation is raised when transbegin/transend/
	// resetbuckets/lockkey is attempted on a bucket in an incompatible
	// state.
	KindBucketStateViolation Kind = "bucket_state_violation"
	// KindKeyNotFound is raised when the target of RENAME, MOVE,
	// UNLOCKKEY or TRANSENDKEY is absent.
	KindKeyNotFound Kind = "key_not_found"
	// KindDuplicateTarget is raised by RENAMENX and MOVE when the
	// destination already exists.
	KindDuplicateTarget Kind = "duplicate_target"
	// KindAlreadyLocked is raised when another key is already locked
	// in the bucket.
	KindAlreadyLocked Kind = "already_locked"
	// KindSyntaxError is raised when scan options aren't recognized.
	KindSyntaxError Kind = "syntax_error"
	// KindWrongType is raised when an operation isn't applicable to the
	// value's type tag.
	KindWrongType Kind = "wrong_type"
	// KindInvariantViolation marks an assertion failure. Treated as
	// fatal; callers should abort the process rather than recover.
	KindInvariantViolation Kind = "invariant_violation"
)

// Error is the error type raised by the keyspace core. It always carries
// a Kind so callers (the dispatcher, tests) can switch on category
// without string-matching the message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Fatal reports whether e must abort the process. Only invariant
// violations are fatal; every other kind is surfaced to the caller with
// the keyspace left unchanged.
func (e *Error) Fatal() bool {
	return e.Kind == KindInvariantViolation
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// NewInvalidArgument creates a KindInvalidArgument error.
func NewInvalidArgument(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewWrongRole creates a KindWrongRole error naming the command and the
// role that was required.
func NewWrongRole(command string, needed ...string) *Error {
	return &Error{
		Kind: KindWrongRole,
		Message: fmt.Sprintf("%s requires role %s", command,
			joinRoles(needed)),
	}
}

// NewBucketStateViolation creates a KindBucketStateViolation error naming
// the offending bucket.
func NewBucketStateViolation(bucket uint32, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindBucketStateViolation,
		Message: fmt.Sprintf("bucket %d: %s", bucket, fmt.Sprintf(format, args...)),
	}
}

// NewKeyNotFound creates a KindKeyNotFound error naming the key.
func NewKeyNotFound(key string) *Error {
	return &Error{Kind: KindKeyNotFound, Message: fmt.Sprintf("no such key %q", key)}
}

// NewDuplicateTarget creates a KindDuplicateTarget error naming the
// destination key or database.
func NewDuplicateTarget(target string) *Error {
	return &Error{Kind: KindDuplicateTarget, Message: fmt.Sprintf("target exists: %s", target)}
}

// NewAlreadyLocked creates a KindAlreadyLocked error naming the key
// already holding the bucket's lock.
func NewAlreadyLocked(existing string) *Error {
	return &Error{
		Kind:    KindAlreadyLocked,
		Message: fmt.Sprintf("bucket already has a locked key: %q", existing),
	}
}

// NewSyntaxError creates a KindSyntaxError error.
func NewSyntaxError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindSyntaxError, Message: fmt.Sprintf(format, args...)}
}

// NewWrongType creates a KindWrongType error.
func NewWrongType(op, typeTag string) *Error {
	return &Error{
		Kind:    KindWrongType,
		Message: fmt.Sprintf("%s: wrong type for value encoded as %s", op, typeTag),
	}
}

// NewInvariantViolation creates a KindInvariantViolation error. Callers
// should treat this as unrecoverable: log it and abort rather than
// continue serving commands against possibly-corrupt state.
func NewInvariantViolation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf(format, args...)}
}

func joinRoles(roles []string) string {
	switch len(roles) {
	case 0:
		return "<none>"
	case 1:
		return roles[0]
	default:
		s := roles[0]
		for _, r := range roles[1:] {
			s += " or " + r
		}
		return s
	}
}
