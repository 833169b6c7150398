// Package engine is the pion-backed media engine binding. It implements the
// core engine interfaces with pion's ORTC API: a worker is an isolated
// settings scope with a bounded UDP port range, a router is a codec-scoped
// webrtc.API, a transport is an ICE+DTLS pair, and producers/consumers are
// RTP receivers/senders glued together by a per-producer forwarding loop.
package engine

import (
	"context"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

type Config struct {
	// ListenIP restricts candidate gathering to one host interface.
	ListenIP string
	// AnnouncedIP is the externally reachable address advertised in
	// candidates when the host sits behind NAT.
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) CreateWorker(_ context.Context) (core.Worker, error) {
	se := webrtc.SettingEngine{}
	se.SetLite(true)
	if e.cfg.MinPort != 0 || e.cfg.MaxPort != 0 {
		if err := se.SetEphemeralUDPPortRange(e.cfg.MinPort, e.cfg.MaxPort); err != nil {
			return nil, err
		}
	}
	if e.cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{e.cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	if e.cfg.ListenIP != "" {
		listen := net.ParseIP(e.cfg.ListenIP)
		se.SetIPFilter(func(ip net.IP) bool { return ip.Equal(listen) })
	}
	w := &worker{settings: se, pid: os.Getpid()}
	log.Info().Str("module", "engine").Int("pid", w.pid).
		Uint16("min_port", e.cfg.MinPort).Uint16("max_port", e.cfg.MaxPort).Msg("worker created")
	return w, nil
}

// worker scopes the shared transport settings. It runs in-process, so its
// "pid" is the host process; the died callback is kept for parity with
// engines that run workers out of process.
type worker struct {
	settings webrtc.SettingEngine
	pid      int

	mu      sync.Mutex
	onDied  func(error)
	routers []*router
	closed  bool
}

func (w *worker) PID() int { return w.pid }

func (w *worker) OnDied(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDied = fn
}

func (w *worker) died(err error) {
	w.mu.Lock()
	fn := w.onDied
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (w *worker) CreateRouter(_ context.Context, codecs []core.RtpCodecCapability) (core.Router, error) {
	r, err := newRouter(w.settings, codecs)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.routers = append(w.routers, r)
	w.mu.Unlock()
	return r, nil
}

func (w *worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	routers := w.routers
	w.routers = nil
	w.mu.Unlock()
	for _, r := range routers {
		r.Close()
	}
}

func newID() string { return uuid.NewString() }
