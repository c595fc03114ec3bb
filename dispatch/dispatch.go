// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package dispatch

import (
	"strings"

	"github.com/aristanetworks/keybucket/kerrors"
	"github.com/aristanetworks/keybucket/server"
	"github.com/aristanetworks/keybucket/store"
)

// Dispatcher is the single-threaded cooperative command executor of §5:
// Exec must only ever be called from one goroutine at a time against a
// given State.
type Dispatcher struct {
	State *server.State
}

// New builds a Dispatcher over state.
func New(state *server.State) *Dispatcher {
	return &Dispatcher{State: state}
}

type handlerFunc func(*Dispatcher, *server.Session, []string) Reply

var handlers map[string]handlerFunc

func init() {
	handlers = map[string]handlerFunc{
		"SELECT":            cmdSelect,
		"GET":               cmdGet,
		"SET":               cmdSet,
		"EXISTS":            cmdExists,
		"DEL":               cmdDel,
		"TYPE":              cmdType,
		"RANDOMKEY":         cmdRandomKey,
		"KEYS":              cmdKeys,
		"DBSIZE":            cmdDBSize,
		"EXPIRE":            cmdExpire,
		"PEXPIRE":           cmdPExpire,
		"EXPIREAT":          cmdExpireAt,
		"PEXPIREAT":         cmdPExpireAt,
		"TTL":               cmdTTL,
		"PTTL":              cmdPTTL,
		"PERSIST":           cmdPersist,
		"RENAME":            cmdRename,
		"RENAMENX":          cmdRenameNX,
		"MOVE":              cmdMove,
		"FLUSHDB":           cmdFlushDB,
		"FLUSHALL":          cmdFlushAll,
		"SCAN":              cmdScan,
		"HASHKEYS":          cmdHashKeys,
		"HASHKEYSSIZE":      cmdHashKeysSize,
		"GETHASHVAL":        cmdGetHashVal,
		"RCTRANSSERVER":     cmdTransServer,
		"RCLOCKKEY":         cmdLockKey,
		"RCUNLOCKKEY":       cmdUnlockKey,
		"RCTRANSENDKEY":     cmdTransEndKey,
		"RCTRANSBEGIN":      cmdTransBegin,
		"RCTRANSEND":        cmdTransEnd,
		"RCRESETBUCKETS":    cmdResetBuckets,
		"RCSETBUCKETSTATUS": cmdSetBucketStatus,
		"RCKEYSTATUS":       cmdKeyStatus,
		"RCLOCKINGKEYS":     cmdLockingKeys,
		"RCBUCKETSTATUS":    cmdBucketStatus,
		"RCGETLOCKINGKEY":   cmdGetLockingKey,
		"RCTRANSTAT":        cmdTransStat,
		"RCCASTRANSEND":     cmdCasTransEnd,
	}
}

// Exec looks up argv[0] (case-insensitive) and runs it against sess.
// Fatal (invariant_violation) errors are escalated to Log.Fatal, the
// teacher's glog.Fatal(err) pattern, per §7.
func (d *Dispatcher) Exec(sess *server.Session, argv []string) Reply {
	if len(argv) == 0 {
		return Error(kerrors.NewSyntaxError("empty command"))
	}
	h, ok := handlers[strings.ToUpper(argv[0])]
	if !ok {
		return Error(kerrors.NewSyntaxError("unknown command %q", argv[0]))
	}
	reply := h(d, sess, argv[1:])
	if reply.IsError() {
		if kerr, ok := reply.Err.(*kerrors.Error); ok && kerr.Fatal() {
			if d.State.Log != nil {
				d.State.Log.Fatal(kerr)
			}
		}
	}
	return reply
}

func (d *Dispatcher) db(sess *server.Session) (*store.Database, error) {
	return d.State.Database(sess.DB)
}
