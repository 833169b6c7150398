package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

// router is a codec-scoped webrtc.API plus an index of the producers routed
// through it, which is what CanConsume checks against.
type router struct {
	id   string
	api  *webrtc.API
	caps core.RtpCapabilities

	mu         sync.RWMutex
	producers  map[string]*producer
	transports map[string]*transport
	closed     bool
}

func newRouter(settings webrtc.SettingEngine, codecs []core.RtpCodecCapability) (*router, error) {
	me := &webrtc.MediaEngine{}
	pt := webrtc.PayloadType(96)
	for _, c := range codecs {
		params := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  c.MimeType,
				ClockRate: c.ClockRate,
				Channels:  c.Channels,
			},
			PayloadType: pt,
		}
		typ := webrtc.RTPCodecTypeAudio
		if c.Kind == core.MediaKindVideo {
			typ = webrtc.RTPCodecTypeVideo
		}
		if err := me.RegisterCodec(params, typ); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
		pt++
	}

	r := &router{
		id:         newID(),
		api:        webrtc.NewAPI(webrtc.WithSettingEngine(settings), webrtc.WithMediaEngine(me)),
		caps:       core.RtpCapabilities{Codecs: codecs},
		producers:  make(map[string]*producer),
		transports: make(map[string]*transport),
	}
	log.Info().Str("module", "engine").Str("router", r.id).Int("codecs", len(codecs)).Msg("router created")
	return r, nil
}

func (r *router) ID() string { return r.id }

func (r *router) Capabilities() core.RtpCapabilities { return r.caps }

func (r *router) CreateTransport(ctx context.Context) (core.Transport, error) {
	t, err := newTransport(ctx, r)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.transports[t.id] = t
	r.mu.Unlock()
	return t, nil
}

// CanConsume reports whether caps contain a codec compatible with what the
// producer is sending: same mime type (case-insensitive) and clock rate.
func (r *router) CanConsume(producerID string, caps core.RtpCapabilities) bool {
	p := r.producer(producerID)
	if p == nil {
		return false
	}
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, p.codec.MimeType) && c.ClockRate == p.codec.ClockRate {
			return true
		}
	}
	return false
}

func (r *router) producer(id string) *producer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producers[id]
}

func (r *router) registerProducer(p *producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.id] = p
}

func (r *router) dropProducer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}

func (r *router) dropTransport(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}

func (r *router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	transports := make([]*transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.transports = make(map[string]*transport)
	r.mu.Unlock()
	for _, t := range transports {
		t.Close()
	}
	log.Info().Str("module", "engine").Str("router", r.id).Msg("router closed")
}
