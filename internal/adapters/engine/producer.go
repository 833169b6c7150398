package engine

import (
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

// producer is one peer's incoming media stream plus the forwarding loop that
// fans its RTP packets out to every consumer bound to it.
type producer struct {
	id     string
	kind   core.MediaKind
	params core.RtpParameters
	codec  core.RtpCodecParameters

	router   *router
	receiver *webrtc.RTPReceiver

	mu        sync.RWMutex
	consumers map[string]*consumer
	closed    bool
	done      chan struct{}
}

func newProducer(r *router, kind core.MediaKind, params core.RtpParameters, receiver *webrtc.RTPReceiver) *producer {
	p := &producer{
		id:        newID(),
		kind:      kind,
		params:    params,
		codec:     producerCodec(r, kind, params),
		router:    r,
		receiver:  receiver,
		consumers: make(map[string]*consumer),
		done:      make(chan struct{}),
	}
	logger := log.With().Str("module", "engine").Str("producer", p.id).Str("kind", string(kind)).Logger()
	go p.loop(&logger)
	return p
}

// producerCodec picks the codec the producer sends with: the first codec in
// its parameters, falling back to the router capability for its kind.
func producerCodec(r *router, kind core.MediaKind, params core.RtpParameters) core.RtpCodecParameters {
	if len(params.Codecs) > 0 {
		return params.Codecs[0]
	}
	for _, c := range r.caps.Codecs {
		if c.Kind == kind {
			return core.RtpCodecParameters{
				MimeType:  c.MimeType,
				ClockRate: c.ClockRate,
				Channels:  c.Channels,
			}
		}
	}
	return core.RtpCodecParameters{}
}

func (p *producer) ID() string { return p.id }

func (p *producer) Kind() core.MediaKind { return p.kind }

// loop reads RTP packets off the receiver track and forwards them to every
// active consumer. It exits when the receiver stops.
func (p *producer) loop(logger *zerolog.Logger) {
	track := p.receiver.Track()
	if track == nil {
		logger.Warn().Msg("no receiver track, forwarding loop not started")
		return
	}
	logger.Info().Msg("forwarding loop started")
	for {
		select {
		case <-p.done:
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("read RTP stopped")
			return
		}
		p.forward(pkt, logger)
	}
}

func (p *producer) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	p.mu.RLock()
	snapshot := make(map[string]*consumer, len(p.consumers))
	maps.Copy(snapshot, p.consumers)
	p.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for id, c := range snapshot {
		switch c.state() {
		case consumerClosed:
			dirty = append(dirty, id)
		case consumerPaused:
		case consumerActive:
			if err := c.track.WriteRTP(pkt); err != nil {
				logger.Warn().Err(err).Str("consumer", id).Msg("write RTP failed, dropping consumer")
				c.markClosed()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		p.mu.Lock()
		for _, id := range dirty {
			delete(p.consumers, id)
		}
		p.mu.Unlock()
	}
}

func (p *producer) addConsumer(c *consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers[c.id] = c
}

func (p *producer) dropConsumer(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.consumers, id)
}

func (p *producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	for _, c := range p.consumers {
		c.markClosed()
	}
	p.consumers = make(map[string]*consumer)
	p.mu.Unlock()

	if err := p.receiver.Stop(); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("producer", p.id).Msg("receiver stop")
	}
	p.router.dropProducer(p.id)
	log.Debug().Str("module", "engine").Str("producer", p.id).Msg("producer closed")
}
