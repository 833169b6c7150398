package engine

import (
	"context"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

type consumerState int32

const (
	consumerPaused consumerState = iota
	consumerActive
	consumerClosed
)

// consumer is one peer's outgoing view of a remote producer. It starts paused;
// the forwarding loop skips it until the owning client resumes it.
type consumer struct {
	id         string
	producerID string
	kind       core.MediaKind
	params     core.RtpParameters

	track  *webrtc.TrackLocalStaticRTP
	sender *webrtc.RTPSender
	prod   *producer

	st atomic.Int32 // zero value is consumerPaused
}

func newConsumer(p *producer, track *webrtc.TrackLocalStaticRTP, sender *webrtc.RTPSender) *consumer {
	params := p.params
	params.MID = ""
	return &consumer{
		id:         newID(),
		producerID: p.id,
		kind:       p.kind,
		params:     params,
		track:      track,
		sender:     sender,
		prod:       p,
	}
}

func (c *consumer) ID() string { return c.id }

func (c *consumer) ProducerID() string { return c.producerID }

func (c *consumer) Kind() core.MediaKind { return c.kind }

func (c *consumer) RtpParameters() core.RtpParameters { return c.params }

func (c *consumer) state() consumerState {
	return consumerState(c.st.Load())
}

func (c *consumer) markClosed() {
	c.st.Store(int32(consumerClosed))
}

func (c *consumer) Resume(_ context.Context) error {
	if c.state() == consumerClosed {
		return core.ErrNotFound
	}
	c.st.Store(int32(consumerActive))
	log.Debug().Str("module", "engine").Str("consumer", c.id).Msg("consumer resumed")
	return nil
}

func (c *consumer) Close() {
	if c.state() == consumerClosed {
		return
	}
	c.markClosed()
	c.prod.dropConsumer(c.id)
	if err := c.sender.Stop(); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("consumer", c.id).Msg("sender stop")
	}
	log.Debug().Str("module", "engine").Str("consumer", c.id).Msg("consumer closed")
}
