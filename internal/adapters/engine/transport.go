package engine

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

// transport is one client-facing network path: an ICE transport and a DTLS
// transport over it. Candidates are gathered up front so the negotiation
// bundle can be handed to the client in the create reply.
type transport struct {
	id     string
	router *router

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	info     core.TransportInfo

	mu     sync.Mutex
	closed bool
}

func newTransport(ctx context.Context, r *router) (*transport, error) {
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, err
	}
	ice := r.api.NewICETransport(gatherer)
	dtls, err := r.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, err
	}

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, err
	}
	select {
	case <-gatherDone:
	case <-ctx.Done():
		_ = gatherer.Close()
		return nil, ctx.Err()
	}

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, err
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, err
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, err
	}

	t := &transport{
		id:       newID(),
		router:   r,
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
	}
	t.info = core.TransportInfo{
		ID: t.id,
		IceParameters: core.IceParameters{
			UsernameFragment: iceParams.UsernameFragment,
			Password:         iceParams.Password,
			IceLite:          true,
		},
		IceCandidates:  convertCandidates(candidates),
		DtlsParameters: convertLocalDtls(dtlsParams),
	}
	log.Debug().Str("module", "engine").Str("transport", t.id).
		Int("candidates", len(t.info.IceCandidates)).Msg("transport created")
	return t, nil
}

func (t *transport) ID() string { return t.id }

func (t *transport) Info() core.TransportInfo { return t.info }

// Connect starts ICE in the controlled role and completes the DTLS handshake
// with the client's parameters. As the lite side we learn the client's ICE
// credentials from its binding requests rather than from signaling.
func (t *transport) Connect(_ context.Context, remote core.DtlsParameters) error {
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, webrtc.ICEParameters{}, &role); err != nil {
		return err
	}
	fingerprints := make([]webrtc.DTLSFingerprint, 0, len(remote.Fingerprints))
	for _, f := range remote.Fingerprints {
		fingerprints = append(fingerprints, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return t.dtls.Start(webrtc.DTLSParameters{
		Role:         parseDtlsRole(remote.Role),
		Fingerprints: fingerprints,
	})
}

func (t *transport) Produce(_ context.Context, kind core.MediaKind, params core.RtpParameters) (core.Producer, error) {
	codecType := webrtc.RTPCodecTypeAudio
	if kind == core.MediaKindVideo {
		codecType = webrtc.RTPCodecTypeVideo
	}
	receiver, err := t.router.api.NewRTPReceiver(codecType, t.dtls)
	if err != nil {
		return nil, err
	}
	var ssrc webrtc.SSRC
	if len(params.Encodings) > 0 {
		ssrc = webrtc.SSRC(params.Encodings[0].SSRC)
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{
			{RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: ssrc}},
		},
	})
	if err != nil {
		return nil, err
	}

	p := newProducer(t.router, kind, params, receiver)
	t.router.registerProducer(p)
	return p, nil
}

func (t *transport) Consume(_ context.Context, producerID string, _ core.RtpCapabilities) (core.Consumer, error) {
	p := t.router.producer(producerID)
	if p == nil {
		return nil, core.ErrNotFound
	}
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  p.codec.MimeType,
		ClockRate: p.codec.ClockRate,
		Channels:  p.codec.Channels,
	}, string(p.kind)+"-"+newID(), "huddle")
	if err != nil {
		return nil, err
	}
	sender, err := t.router.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, err
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		return nil, err
	}

	c := newConsumer(p, track, sender)
	p.addConsumer(c)
	return c, nil
}

func (t *transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.dtls.Stop(); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("transport", t.id).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("transport", t.id).Msg("ice stop")
	}
	if err := t.gatherer.Close(); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("transport", t.id).Msg("gatherer close")
	}
	t.router.dropTransport(t.id)
	log.Debug().Str("module", "engine").Str("transport", t.id).Msg("transport closed")
}

func convertCandidates(in []webrtc.ICECandidate) []core.IceCandidate {
	out := make([]core.IceCandidate, 0, len(in))
	for _, c := range in {
		out = append(out, core.IceCandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Port:       c.Port,
			Protocol:   c.Protocol.String(),
			Type:       c.Typ.String(),
		})
	}
	return out
}

func convertLocalDtls(in webrtc.DTLSParameters) core.DtlsParameters {
	fps := make([]core.DtlsFingerprint, 0, len(in.Fingerprints))
	for _, f := range in.Fingerprints {
		fps = append(fps, core.DtlsFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return core.DtlsParameters{Role: in.Role.String(), Fingerprints: fps}
}

func parseDtlsRole(role string) webrtc.DTLSRole {
	switch role {
	case "client":
		return webrtc.DTLSRoleClient
	case "server":
		return webrtc.DTLSRoleServer
	default:
		return webrtc.DTLSRoleAuto
	}
}
