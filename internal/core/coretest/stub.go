// Package coretest provides in-memory fakes for the media engine binding so
// coordinator logic can be tested without a real media stack.
package coretest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/core"
)

// StubEngine hands out StubWorkers and counts how many were created.
type StubEngine struct {
	mu      sync.Mutex
	Workers []*StubWorker

	// CreateWorkerErr, when set, fails every CreateWorker call.
	CreateWorkerErr error
}

func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

func (e *StubEngine) CreateWorker(ctx context.Context) (core.Worker, error) {
	if e.CreateWorkerErr != nil {
		return nil, e.CreateWorkerErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	w := &StubWorker{pid: 1000 + len(e.Workers)}
	e.Workers = append(e.Workers, w)
	return w, nil
}

type StubWorker struct {
	mu      sync.Mutex
	pid     int
	onDied  func(error)
	Routers []*StubRouter
	Closed  bool

	// CreateRouterErr, when set, fails every CreateRouter call.
	CreateRouterErr error
	// Block, when non-nil, makes CreateRouter wait until ctx is done and
	// return ctx.Err(). Used to exercise timeout handling.
	Block bool
}

func (w *StubWorker) PID() int { return w.pid }

func (w *StubWorker) OnDied(fn func(error)) {
	w.mu.Lock()
	w.onDied = fn
	w.mu.Unlock()
}

// Die invokes the registered death callback, simulating a fatal worker
// failure.
func (w *StubWorker) Die(err error) {
	w.mu.Lock()
	fn := w.onDied
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (w *StubWorker) CreateRouter(ctx context.Context, codecs []core.RtpCodecCapability) (core.Router, error) {
	if w.CreateRouterErr != nil {
		return nil, w.CreateRouterErr
	}
	if w.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := &StubRouter{
		id:     fmt.Sprintf("router-%d-%d", w.pid, len(w.Routers)),
		codecs: codecs,
	}
	w.Routers = append(w.Routers, r)
	return r, nil
}

func (w *StubWorker) Close() {
	w.mu.Lock()
	w.Closed = true
	w.mu.Unlock()
}

type StubRouter struct {
	mu         sync.Mutex
	id         string
	codecs     []core.RtpCodecCapability
	Transports []*StubTransport
	Closed     bool

	// CanConsumeFn overrides the default always-true compatibility check.
	CanConsumeFn func(producerID string, caps core.RtpCapabilities) bool
	// CreateTransportErr, when set, fails every CreateTransport call.
	CreateTransportErr error
	// BlockTransport makes CreateTransport wait for ctx and return its error.
	BlockTransport bool

	seq atomic.Int64
}

func (r *StubRouter) ID() string { return r.id }

func (r *StubRouter) Capabilities() core.RtpCapabilities {
	return core.RtpCapabilities{Codecs: r.codecs}
}

func (r *StubRouter) CreateTransport(ctx context.Context) (core.Transport, error) {
	if r.CreateTransportErr != nil {
		return nil, r.CreateTransportErr
	}
	if r.BlockTransport {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &StubTransport{
		id:     fmt.Sprintf("%s-t%d", r.id, r.seq.Add(1)),
		router: r,
	}
	r.Transports = append(r.Transports, t)
	return t, nil
}

func (r *StubRouter) CanConsume(producerID string, caps core.RtpCapabilities) bool {
	if r.CanConsumeFn != nil {
		return r.CanConsumeFn(producerID, caps)
	}
	return true
}

func (r *StubRouter) Close() {
	r.mu.Lock()
	r.Closed = true
	r.mu.Unlock()
}

type StubTransport struct {
	mu        sync.Mutex
	id        string
	router    *StubRouter
	Connected bool
	Closed    bool
	Producers []*StubProducer
	Consumers []*StubConsumer

	// ConnectErr, when set, fails Connect.
	ConnectErr error
}

func (t *StubTransport) ID() string { return t.id }

func (t *StubTransport) Info() core.TransportInfo {
	return core.TransportInfo{
		ID:            t.id,
		IceParameters: core.IceParameters{UsernameFragment: "ufrag", Password: "pwd", IceLite: true},
		IceCandidates: []core.IceCandidate{{
			Foundation: "stub", IP: "127.0.0.1", Port: 40000, Protocol: "udp", Type: "host",
		}},
		DtlsParameters: core.DtlsParameters{
			Role:         "auto",
			Fingerprints: []core.DtlsFingerprint{{Algorithm: "sha-256", Value: "00"}},
		},
	}
}

func (t *StubTransport) Connect(ctx context.Context, dtls core.DtlsParameters) error {
	if t.ConnectErr != nil {
		return t.ConnectErr
	}
	t.mu.Lock()
	t.Connected = true
	t.mu.Unlock()
	return nil
}

func (t *StubTransport) Produce(ctx context.Context, kind core.MediaKind, params core.RtpParameters) (core.Producer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &StubProducer{
		id:   fmt.Sprintf("%s-p%d", t.id, len(t.Producers)),
		kind: kind,
	}
	t.Producers = append(t.Producers, p)
	return p, nil
}

func (t *StubTransport) Consume(ctx context.Context, producerID string, caps core.RtpCapabilities) (core.Consumer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &StubConsumer{
		id:         fmt.Sprintf("%s-c%d", t.id, len(t.Consumers)),
		producerID: producerID,
		kind:       core.MediaKindVideo,
	}
	t.Consumers = append(t.Consumers, c)
	return c, nil
}

func (t *StubTransport) Close() {
	t.mu.Lock()
	t.Closed = true
	t.mu.Unlock()
}

type StubProducer struct {
	mu     sync.Mutex
	id     string
	kind   core.MediaKind
	Closed bool
}

func (p *StubProducer) ID() string           { return p.id }
func (p *StubProducer) Kind() core.MediaKind { return p.kind }

func (p *StubProducer) Close() {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
}

func (p *StubProducer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

type StubConsumer struct {
	mu         sync.Mutex
	id         string
	producerID string
	kind       core.MediaKind
	Resumed    bool
	Closed     bool
}

func (c *StubConsumer) ID() string           { return c.id }
func (c *StubConsumer) ProducerID() string   { return c.producerID }
func (c *StubConsumer) Kind() core.MediaKind { return c.kind }

func (c *StubConsumer) RtpParameters() core.RtpParameters {
	return core.RtpParameters{
		Codecs: []core.RtpCodecParameters{{MimeType: "video/VP8", PayloadType: 96, ClockRate: 90000}},
	}
}

func (c *StubConsumer) Resume(ctx context.Context) error {
	c.mu.Lock()
	c.Resumed = true
	c.mu.Unlock()
	return nil
}

func (c *StubConsumer) Close() {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
}

func (c *StubConsumer) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Closed
}

// StubConn is a SignalConnection fake that records every frame it was handed.
type StubConn struct {
	mu     sync.Mutex
	Frames []core.Frame
	Err    error
}

func (c *StubConn) TrySend(f core.Frame) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	c.Frames = append(c.Frames, f)
	c.mu.Unlock()
	return nil
}

func (c *StubConn) Close() {}

// Sent returns a copy of the frames delivered so far.
func (c *StubConn) Sent() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Frame, len(c.Frames))
	copy(out, c.Frames)
	return out
}
