// Package sfu owns media engine resources shared across rooms.
package sfu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

// WorkerPool owns the media-processing workers created at startup. A worker
// reporting fatal failure is unrecoverable: it cannot be trusted to keep
// mediating any of its routers, so the pool schedules process termination
// after a grace delay instead of degrading silently.
type WorkerPool struct {
	engine    core.Engine
	grace     time.Duration
	terminate func()

	mu      sync.RWMutex
	workers []core.Worker

	dying atomic.Bool
}

func NewWorkerPool(engine core.Engine, grace time.Duration, terminate func()) *WorkerPool {
	return &WorkerPool{engine: engine, grace: grace, terminate: terminate}
}

// Start creates n workers. Creation failure at startup is returned to the
// caller; after startup only the died signal matters.
func (p *WorkerPool) Start(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w, err := p.engine.CreateWorker(ctx)
		if err != nil {
			return fmt.Errorf("create worker %d: %w", i, err)
		}
		w.OnDied(func(err error) { p.fatal(w, err) })
		p.mu.Lock()
		p.workers = append(p.workers, w)
		p.mu.Unlock()
		log.Info().Str("module", "sfu.pool").Int("pid", w.PID()).Msg("worker started")
	}
	return nil
}

// Worker returns the worker that hosts room routers. Rooms are not balanced
// across workers; the first worker carries them all. Known limitation.
func (p *WorkerPool) Worker() (core.Worker, error) {
	if p.dying.Load() {
		return nil, core.ErrEngineFailure
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.workers) == 0 {
		return nil, core.ErrEngineFailure
	}
	return p.workers[0], nil
}

// Terminating reports whether worker death has been observed. Event handlers
// check this and stop accepting work while the grace period drains.
func (p *WorkerPool) Terminating() bool {
	return p.dying.Load()
}

func (p *WorkerPool) fatal(w core.Worker, err error) {
	if !p.dying.CompareAndSwap(false, true) {
		return
	}
	log.Error().Err(err).Str("module", "sfu.pool").Int("pid", w.PID()).
		Dur("grace", p.grace).Msg("worker died, scheduling termination")
	time.AfterFunc(p.grace, p.terminate)
}

func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		w.Close()
	}
	p.workers = nil
}
