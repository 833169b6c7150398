package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// CreateTransport asks the peer's room router for a new client-facing
// transport. A peer gets exactly one producer-side transport; a second
// request for one is rejected rather than left to desync peer state.
// Consumer-side transports are unbounded.
func (o *Orchestrator) CreateTransport(ctx context.Context, cid domain.ConnID, consumerSide bool) (core.TransportInfo, error) {
	room, ok := o.Peers.RoomOf(cid)
	if !ok {
		return core.TransportInfo{}, core.ErrNotFound
	}
	if !consumerSide {
		if _, exists := o.Peers.ProducerTransport(cid); exists {
			return core.TransportInfo{}, core.ErrAlreadyExists
		}
	}
	router, ok := o.Rooms.Router(room)
	if !ok {
		return core.TransportInfo{}, core.ErrNotFound
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	t, err := router.CreateTransport(ectx)
	if err != nil {
		return core.TransportInfo{}, engineErr(err)
	}
	o.Peers.AddTransport(&app.TransportRec{
		ID:           t.ID(),
		Owner:        cid,
		Room:         room,
		ConsumerSide: consumerSide,
		Handle:       t,
	})
	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("transport", t.ID()).
		Bool("consumer_side", consumerSide).Msg("transport created")
	return t.Info(), nil
}

// ConnectTransport completes the DTLS handshake for the caller's
// producer-side transport, or for the named consumer-side transport when
// consumerSide is true. NotFound when no matching transport exists for this
// connection and role; no state changes in that case.
func (o *Orchestrator) ConnectTransport(ctx context.Context, cid domain.ConnID, dtls core.DtlsParameters, consumerSide bool, targetID string) error {
	var rec *app.TransportRec
	var ok bool
	if consumerSide {
		rec, ok = o.Peers.ConsumerTransport(cid, targetID)
	} else {
		rec, ok = o.Peers.ProducerTransport(cid)
	}
	if !ok {
		return core.ErrNotFound
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	if err := rec.Handle.Connect(ectx, dtls); err != nil {
		return engineErr(err)
	}
	o.Peers.SetTransportConnected(rec.ID)
	log.Debug().Str("module", "orch").Str("transport", rec.ID).Msg("transport connected")
	return nil
}
