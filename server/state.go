// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package server

import (
	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/collab"
	"github.com/aristanetworks/keybucket/kerrors"
	"github.com/aristanetworks/keybucket/logger"
	"github.com/aristanetworks/keybucket/store"
)

// State is the process-wide handle threaded into every command: the
// bucket table (shared by every database), the numbered databases
// themselves, the session registry, and the two process-wide fields
// §9 calls out explicitly, ServerInTransfer and DirtyCounter.
//
// State is single-owner: the single command executor of §5 is its only
// caller, so no field here needs a mutex.
type State struct {
	Buckets   *bucket.Table
	Databases []*store.Database
	Collab    *collab.Bundle
	Log       logger.Logger

	ServerInTransfer bool
	DirtyCounter     int64

	sessions map[bucket.OwnerID]*Session
	nextID   bucket.OwnerID
}

// NewState allocates a State with cfg.DBNum databases sharing a single
// cfg.Buckets-sized bucket table.
func NewState(cfg *Config, bundle *collab.Bundle, log logger.Logger) *State {
	table := bucket.NewTable(cfg.Buckets)
	dbs := make([]*store.Database, cfg.DBNum)
	for i := range dbs {
		dbs[i] = store.NewDatabase(i, table, bundle, log)
	}
	return &State{
		Buckets:   table,
		Databases: dbs,
		Collab:    bundle,
		Log:       log,
		sessions:  make(map[bucket.OwnerID]*Session),
	}
}

// NewSession registers and returns a fresh session with role NONE.
func (s *State) NewSession() *Session {
	s.nextID++
	sess := &Session{ID: s.nextID, Role: bucket.RoleNone}
	s.sessions[sess.ID] = sess
	return sess
}

// CloseSession drops a disconnected session. Per §5's cancellation
// model, this does not roll back any migration state the session owned
// -- a dangling owner_id is exactly what transbegin's single-bucket
// resumption path is for.
func (s *State) CloseSession(id bucket.OwnerID) {
	delete(s.sessions, id)
}

// StillOwned reports whether some other currently-connected session
// still claims ownership of owner with an active transfer role. This is
// the callback bucket.Table.TransBegin consults for single-bucket
// resumption.
func (s *State) StillOwned(owner bucket.OwnerID) bool {
	sess, ok := s.sessions[owner]
	if !ok {
		return false
	}
	return sess.Role == bucket.RoleTransIn || sess.Role == bucket.RoleTransOut
}

// IncrDirty bumps the process-wide dirty counter, the way every
// mutating command does on success.
func (s *State) IncrDirty() {
	s.DirtyCounter++
}

// RefreshServerInTransfer recomputes ServerInTransfer from the bucket
// table's actual statuses (invariant 6: ServerInTransfer == false implies
// every bucket is IN_USING).
func (s *State) RefreshServerInTransfer() {
	s.ServerInTransfer = !s.Buckets.AllInUsing()
}

// Database returns the numbered database, bounds-checked against dbnum.
func (s *State) Database(id int) (*store.Database, error) {
	if id < 0 || id >= len(s.Databases) {
		return nil, kerrors.NewInvalidArgument("database index %d out of range [0,%d)", id, len(s.Databases))
	}
	return s.Databases[id], nil
}
