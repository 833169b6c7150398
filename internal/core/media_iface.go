package core

import "context"

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// RtpCodecCapability describes one codec a router is willing to route.
type RtpCodecCapability struct {
	Kind       MediaKind      `json:"kind"`
	MimeType   string         `json:"mimeType"`
	ClockRate  uint32         `json:"clockRate"`
	Channels   uint16         `json:"channels,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RtpCapabilities is what a router hands to a freshly joined peer so it can
// configure its local media stack, and what a consuming peer sends back.
type RtpCapabilities struct {
	Codecs []RtpCodecCapability `json:"codecs"`
}

type RtpCodecParameters struct {
	MimeType    string         `json:"mimeType"`
	PayloadType uint8          `json:"payloadType"`
	ClockRate   uint32         `json:"clockRate"`
	Channels    uint16         `json:"channels,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type RtpEncodingParameters struct {
	SSRC uint32 `json:"ssrc,omitempty"`
}

type RtpParameters struct {
	MID       string                  `json:"mid,omitempty"`
	Codecs    []RtpCodecParameters    `json:"codecs"`
	Encodings []RtpEncodingParameters `json:"encodings,omitempty"`
}

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite,omitempty"`
}

type IceCandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Port       uint16 `json:"port"`
	Protocol   string `json:"protocol"`
	Type       string `json:"type"`
}

type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DtlsParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// TransportInfo is the negotiation bundle a client needs to connect a
// server-side transport.
type TransportInfo struct {
	ID             string         `json:"id"`
	IceParameters  IceParameters  `json:"iceParameters"`
	IceCandidates  []IceCandidate `json:"iceCandidates"`
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
}

// Engine is the media engine binding. Long-latency calls take a context so the
// caller can bound them; a hung engine call must fail the one operation, not
// stall the process.
type Engine interface {
	CreateWorker(ctx context.Context) (Worker, error)
}

// Worker is an isolated media-processing engine instance. A dead worker cannot
// be partially recovered; the pool escalates its death to process termination.
type Worker interface {
	PID() int
	// OnDied registers the fatal-failure callback. At most one is kept.
	OnDied(func(error))
	CreateRouter(ctx context.Context, codecs []RtpCodecCapability) (Router, error)
	Close()
}

// Router is the per-room routing context. It knows which media formats are
// supported and mediates compatibility checks between producers and consumers.
type Router interface {
	ID() string
	Capabilities() RtpCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	// CanConsume reports whether caps can decode the given producer's media.
	CanConsume(producerID string, caps RtpCapabilities) bool
	Close()
}

type Transport interface {
	ID() string
	Info() TransportInfo
	// Connect completes the DTLS handshake with the client's parameters.
	Connect(ctx context.Context, dtls DtlsParameters) error
	Produce(ctx context.Context, kind MediaKind, params RtpParameters) (Producer, error)
	// Consume creates a consumer bound to producerID. The consumer starts
	// paused; the caller resumes it once its rendering pipeline is set up.
	Consume(ctx context.Context, producerID string, caps RtpCapabilities) (Consumer, error)
	Close()
}

type Producer interface {
	ID() string
	Kind() MediaKind
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() MediaKind
	RtpParameters() RtpParameters
	Resume(ctx context.Context) error
	Close()
}
