package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// ConsumerInfo is the parameter bundle a consuming client needs to set up its
// receiving pipeline.
type ConsumerInfo struct {
	ID            string             `json:"id"`
	ProducerID    string             `json:"producerId"`
	Kind          core.MediaKind     `json:"kind"`
	RtpParameters core.RtpParameters `json:"rtpParameters"`
}

// Produce creates a producer on the caller's producer-side transport and
// notifies every other live member of the room that a new producer is
// available. The notification goes out only after the producer is registered
// in every index a consume lookup might read. The returned flag tells the
// caller whether other producers already exist in the room.
func (o *Orchestrator) Produce(ctx context.Context, cid domain.ConnID, kind core.MediaKind, params core.RtpParameters) (string, bool, error) {
	room, ok := o.Peers.RoomOf(cid)
	if !ok {
		return "", false, core.ErrNotFound
	}
	rec, ok := o.Peers.ProducerTransport(cid)
	if !ok {
		return "", false, core.ErrNotFound
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	producer, err := rec.Handle.Produce(ectx, kind, params)
	if err != nil {
		return "", false, engineErr(err)
	}

	othersExist := len(o.Peers.ProducersInRoom(room, cid)) > 0
	o.Peers.AddProducer(&app.ProducerRec{
		ID:     producer.ID(),
		Owner:  cid,
		Room:   room,
		Kind:   kind,
		Handle: producer,
	})

	for _, m := range o.Rooms.Members(room) {
		if m.ConnID == cid {
			continue
		}
		push(m.Conn, pushNewProducer{Type: "new-producer", ProducerID: producer.ID()})
	}
	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("producer", producer.ID()).
		Str("kind", string(kind)).Msg("producing")
	return producer.ID(), othersExist, nil
}

// Producers lists the ids of all producers in the caller's room not owned by
// the caller.
func (o *Orchestrator) Producers(cid domain.ConnID) ([]string, error) {
	room, ok := o.Peers.RoomOf(cid)
	if !ok {
		return nil, core.ErrNotFound
	}
	return o.Peers.ProducersInRoom(room, cid), nil
}

// Consume binds a paused consumer on the named consumer-side transport to a
// remote producer. The router must confirm the caller's capabilities can
// decode the producer; on mismatch nothing is created or registered. The
// caller resumes the consumer once its rendering pipeline is ready.
func (o *Orchestrator) Consume(ctx context.Context, cid domain.ConnID, transportID, producerID string, caps core.RtpCapabilities) (ConsumerInfo, error) {
	room, ok := o.Peers.RoomOf(cid)
	if !ok {
		return ConsumerInfo{}, core.ErrNotFound
	}
	router, ok := o.Rooms.Router(room)
	if !ok {
		return ConsumerInfo{}, core.ErrNotFound
	}
	prod, ok := o.Peers.Producer(producerID)
	if !ok || prod.Room != room {
		return ConsumerInfo{}, core.ErrNotFound
	}
	tRec, ok := o.Peers.ConsumerTransport(cid, transportID)
	if !ok {
		return ConsumerInfo{}, core.ErrNotFound
	}
	if !router.CanConsume(producerID, caps) {
		return ConsumerInfo{}, core.ErrCapabilityMismatch
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	consumer, err := tRec.Handle.Consume(ectx, producerID, caps)
	if err != nil {
		return ConsumerInfo{}, engineErr(err)
	}
	o.Peers.AddConsumer(&app.ConsumerRec{
		ID:          consumer.ID(),
		Owner:       cid,
		Room:        room,
		ProducerID:  producerID,
		TransportID: transportID,
		Kind:        consumer.Kind(),
		Handle:      consumer,
	})
	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("consumer", consumer.ID()).
		Str("producer", producerID).Msg("consuming")
	return ConsumerInfo{
		ID:            consumer.ID(),
		ProducerID:    producerID,
		Kind:          consumer.Kind(),
		RtpParameters: consumer.RtpParameters(),
	}, nil
}

// ResumeConsumer unpauses a previously created, still-open consumer.
func (o *Orchestrator) ResumeConsumer(ctx context.Context, cid domain.ConnID, consumerID string) error {
	rec, ok := o.Peers.OpenConsumerOf(cid, consumerID)
	if !ok {
		return core.ErrNotFound
	}

	ectx, cancel := o.engineCtx(ctx)
	defer cancel()

	if err := rec.Handle.Resume(ectx); err != nil {
		return engineErr(err)
	}
	log.Debug().Str("module", "orch").Str("consumer", consumerID).Msg("consumer resumed")
	return nil
}

// CloseProducer is the explicit-close entry point; owner disconnect takes the
// same cascade through Disconnect.
func (o *Orchestrator) CloseProducer(cid domain.ConnID, producerID string) error {
	if _, ok := o.Peers.ProducerOwnedBy(cid, producerID); !ok {
		return core.ErrNotFound
	}
	o.closeProducer(producerID)
	return nil
}
