package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type connEntry struct {
	User domain.UserID
	Conn core.SignalConnection
}

// ConnectionRegistry maps authenticated users to their live chat connection.
// One active connection per user: a reconnect overwrites the previous binding
// (last connection wins, no multi-device fan-out). The byConn side index makes
// teardown by connection id O(1) instead of a scan.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]domain.ConnID
	byConn map[domain.ConnID]*connEntry
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byUser: make(map[domain.UserID]domain.ConnID),
		byConn: make(map[domain.ConnID]*connEntry),
	}
}

// Bind registers conn as the user's active connection, displacing any prior
// connection binding for that user.
func (r *ConnectionRegistry) Bind(uid domain.UserID, cid domain.ConnID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUser[uid]; ok && old != cid {
		delete(r.byConn, old)
	}
	r.byUser[uid] = cid
	r.byConn[cid] = &connEntry{User: uid, Conn: conn}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(cid)).Msg("bound connection")
}

// Lookup returns the user's live connection, if any.
func (r *ConnectionRegistry) Lookup(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byUser[uid]
	if !ok {
		return nil, false
	}
	e, ok := r.byConn[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// UserOf resolves the authenticated user for a connection id.
func (r *ConnectionRegistry) UserOf(cid domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[cid]
	if !ok {
		return "", false
	}
	return e.User, true
}

// Unbind removes a connection binding. It is a no-op if the user has since
// reconnected on a different connection.
func (r *ConnectionRegistry) Unbind(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byConn[cid]
	if !ok {
		return
	}
	delete(r.byConn, cid)
	if cur, ok := r.byUser[e.User]; ok && cur == cid {
		delete(r.byUser, e.User)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("unbound connection")
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
