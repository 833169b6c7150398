// Package orch coordinates rooms, peers and media engine resources. One
// instance owns all shared state; signal adapters call into it and never touch
// the registries directly.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type Orchestrator struct {
	Rooms *app.RoomRegistry
	Peers *app.PeerStore
	Pool  *sfu.WorkerPool

	// EngineTimeout bounds every media engine call. Zero disables the bound.
	EngineTimeout time.Duration
}

// engineCtx derives the context an engine call runs under.
func (o *Orchestrator) engineCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.EngineTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.EngineTimeout)
}

// engineErr folds an engine call failure into the shared taxonomy.
func engineErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout
	}
	return errors.Join(core.ErrEngineFailure, err)
}

type pushNewProducer struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerId"`
}

type pushProducerClosed struct {
	Type             string `json:"type"`
	RemoteProducerID string `json:"remoteProducerId"`
}

// push is best-effort: a slow or closed member connection drops the event.
func push(conn core.SignalConnection, v any) {
	if conn == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("push marshal")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("push dropped")
	}
}

// Disconnect tears down everything a connection owns. Room switches and
// explicit leaves run the same walk, so the teardown order lives in one
// place.
func (o *Orchestrator) Disconnect(cid domain.ConnID) {
	o.release(cid)
	log.Info().Str("module", "orch").Str("conn", string(cid)).Msg("disconnected")
}

// release walks the connection's resources in dependency order: consumers
// first, then producers (cascading to remote consumers while room membership
// can still resolve the co-members), then transports, then room membership,
// then the peer record itself. Each step is best-effort; a failure in one
// close never stops the rest of the walk.
func (o *Orchestrator) release(cid domain.ConnID) {
	room, inRoom := o.Peers.RoomOf(cid)

	for _, c := range o.Peers.OwnedConsumers(cid) {
		o.closeConsumer(c.ID, false)
	}
	for _, p := range o.Peers.ProducersOf(cid) {
		o.closeProducer(p.ID)
	}
	for _, t := range o.Peers.TransportsOf(cid) {
		o.closeTransport(t.ID)
	}
	if inRoom {
		o.Rooms.Leave(room, cid)
	}
	if leftover := o.Peers.RemovePeer(cid); leftover > 0 {
		log.Error().Str("module", "orch").Str("conn", string(cid)).Int("leftover", leftover).
			Msg("peer removed with resources still registered")
	}
}

// closeProducer runs the producer close cascade: every dependent consumer's
// owner gets exactly one producer-closed notification, the consumer's
// transport and the consumer itself are closed, and only then is the producer
// record dropped.
func (o *Orchestrator) closeProducer(id string) {
	rec, ok := o.Peers.BeginCloseProducer(id)
	if !ok {
		return
	}
	for _, c := range o.Peers.ConsumersOf(id) {
		o.closeConsumer(c.ID, true)
	}
	rec.Handle.Close()
	o.Peers.FinishCloseProducer(id)
	log.Debug().Str("module", "orch").Str("producer", id).Msg("producer closed")
}

// closeConsumer closes one consumer. When the close was caused by its
// producer going away, the owning connection is notified and the consumer's
// transport is closed too, in that order.
func (o *Orchestrator) closeConsumer(id string, producerClosed bool) {
	rec, ok := o.Peers.BeginCloseConsumer(id)
	if !ok {
		return
	}
	if producerClosed {
		if conn, ok := o.Rooms.Member(rec.Room, rec.Owner); ok {
			push(conn, pushProducerClosed{Type: "producer-closed", RemoteProducerID: rec.ProducerID})
		}
		o.closeTransport(rec.TransportID)
	}
	rec.Handle.Close()
	o.Peers.FinishCloseConsumer(id)
	log.Debug().Str("module", "orch").Str("consumer", id).Msg("consumer closed")
}

func (o *Orchestrator) closeTransport(id string) {
	rec, ok := o.Peers.BeginCloseTransport(id)
	if !ok {
		return
	}
	rec.Handle.Close()
	o.Peers.FinishCloseTransport(id)
	log.Debug().Str("module", "orch").Str("transport", id).Msg("transport closed")
}
