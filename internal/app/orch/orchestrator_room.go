package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// JoinRoom places the connection in the named room, lazily creating the
// room's routing context on first join, and returns the router capabilities
// the peer needs to configure its local media stack. The first member of a
// room becomes its admin.
func (o *Orchestrator) JoinRoom(ctx context.Context, cid domain.ConnID, name domain.RoomName, displayName string, conn core.SignalConnection) (core.RtpCapabilities, error) {
	if o.Pool.Terminating() {
		return core.RtpCapabilities{}, core.ErrEngineFailure
	}

	// A room switch first releases everything held in the old room. The old
	// room's router must not keep fanning out to this connection, and the
	// peer's transports belong to the old router and cannot move.
	if prev, ok := o.Peers.RoomOf(cid); ok && prev != name {
		log.Info().Str("module", "orch").Str("conn", string(cid)).
			Str("from", string(prev)).Str("to", string(name)).Msg("room switch, releasing old room")
		o.release(cid)
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	first := o.Rooms.MemberCount(name) == 0
	router, err := o.Rooms.Join(ectx, name, cid, conn)
	if err != nil {
		return core.RtpCapabilities{}, engineErr(err)
	}
	o.Peers.AddPeer(cid, name, displayName, first)
	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("room", string(name)).
		Bool("admin", first).Msg("peer joined")
	return router.Capabilities(), nil
}

// Capabilities hands back an existing room's capability set.
func (o *Orchestrator) Capabilities(name domain.RoomName) (core.RtpCapabilities, error) {
	return o.Rooms.Capabilities(name)
}

// LeaveRoom releases everything the connection holds in its room, exactly as
// a disconnect would, but keeps the connection itself alive so the client can
// join another room. The routing context stays alive even when the room
// empties.
func (o *Orchestrator) LeaveRoom(cid domain.ConnID) {
	if _, ok := o.Peers.RoomOf(cid); !ok {
		return
	}
	o.release(cid)
	log.Info().Str("module", "orch").Str("conn", string(cid)).Msg("left room")
}
