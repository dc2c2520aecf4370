// Package pool implements a bounded pool of wire engine connections:
// acquire/release semantics backed by a counting semaphore, grounded on
// spec §4.5 and generalizing the teacher's own free/borrowed connection
// tracking idiom.
package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"pglue/engine"
	"pglue/options"
)

// Pool hands out *engine.Wire connections up to MaxConnections, opening
// new ones lazily and reusing released ones.
type Pool struct {
	opts        *options.Options
	maxConns    int64
	idleTimeout time.Duration

	sem *semaphore.Weighted

	mu   sync.Mutex
	all  map[*engine.Wire]struct{}
	free []*engine.Wire

	onLog []func(engine.LogEvent)
}

// New constructs a Pool. idleTimeout is accepted for interface symmetry
// with a reclaiming pool but no reclaim loop runs (spec §9 open question
// (b): reclaim policy is not required).
func New(opts *options.Options, maxConnections int, idleTimeout time.Duration) *Pool {
	return &Pool{
		opts:        opts,
		maxConns:    int64(maxConnections),
		idleTimeout: idleTimeout,
		sem:         semaphore.NewWeighted(int64(maxConnections)),
		all:         map[*engine.Wire]struct{}{},
	}
}

// OnLog subscribes to log events forwarded from every wire the pool owns.
func (p *Pool) OnLog(fn func(engine.LogEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLog = append(p.onLog, fn)
}

// Acquire returns a connected wire, reusing a free one if available or
// opening a new one otherwise, blocking on the semaphore if the pool is
// at capacity.
func (p *Pool) Acquire(ctx context.Context) (*engine.Wire, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		w := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return w, nil
	}
	p.mu.Unlock()

	w := engine.New(p.opts)
	w.OnLog(func(ev engine.LogEvent) { p.forwardLog(ev) })
	w.OnClose(func(reason error) {
		if p.opts.ReconnectDelay == nil {
			p.forget(w)
		}
	})
	if err := w.Connect(ctx); err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.all[w] = struct{}{}
	p.mu.Unlock()
	return w, nil
}

// Release returns w to the free list and releases its semaphore permit,
// but only if w is still tracked by the pool. A wire whose OnClose
// callback already ran forget (pool.go's default, ReconnectDelay == nil)
// already released this permit, so releasing it again here would panic.
func (p *Pool) Release(w *engine.Wire) {
	p.mu.Lock()
	_, tracked := p.all[w]
	if !tracked {
		p.mu.Unlock()
		return
	}
	for _, f := range p.free {
		if f == w {
			p.mu.Unlock()
			return // already free; ignore double-release
		}
	}
	p.free = append(p.free, w)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Forget removes w from the pool permanently, without returning w to the
// free rotation; if w was borrowed, its semaphore permit is released. Used
// when the caller knows w is unusable but the pool's own close-driven
// bookkeeping hasn't run yet.
func (p *Pool) Forget(w *engine.Wire) {
	p.forget(w)
}

func (p *Pool) forget(w *engine.Wire) {
	p.mu.Lock()
	_, tracked := p.all[w]
	if !tracked {
		p.mu.Unlock()
		return
	}
	delete(p.all, w)
	wasFree := false
	for i, f := range p.free {
		if f == w {
			p.free = append(p.free[:i], p.free[i+1:]...)
			wasFree = true
			break
		}
	}
	p.mu.Unlock()
	if !wasFree {
		p.sem.Release(1)
	}
}

// Close closes every wire the pool owns and resets its bookkeeping.
func (p *Pool) Close() {
	p.mu.Lock()
	wires := make([]*engine.Wire, 0, len(p.all))
	for w := range p.all {
		wires = append(wires, w)
	}
	p.all = map[*engine.Wire]struct{}{}
	p.free = nil
	p.mu.Unlock()

	for _, w := range wires {
		w.Close(true)
	}
	p.sem = semaphore.NewWeighted(p.maxConns)
}

func (p *Pool) forwardLog(ev engine.LogEvent) {
	p.mu.Lock()
	subs := append([]func(engine.LogEvent){}, p.onLog...)
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Transaction wraps an *engine.Transaction with the wire it was acquired
// from, so Commit/Rollback can release the wire back to the pool
// automatically.
type Transaction struct {
	pool *Pool
	wire *engine.Wire
	tx   *engine.Transaction
}

// Begin acquires a wire and starts a transaction on it. On failure the
// wire is released before the error is returned.
func (p *Pool) Begin(ctx context.Context) (*Transaction, error) {
	w, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := w.Begin(ctx)
	if err != nil {
		p.Release(w)
		return nil, err
	}
	return &Transaction{pool: p, wire: w, tx: tx}, nil
}

// Wire returns the underlying connection, for issuing queries within
// the transaction's scope.
func (t *Transaction) Wire() *engine.Wire { return t.wire }

// Commit commits the underlying transaction and releases the wire.
func (t *Transaction) Commit(ctx context.Context) error {
	defer t.pool.Release(t.wire)
	return t.tx.Commit(ctx)
}

// Rollback rolls back the underlying transaction and releases the wire.
func (t *Transaction) Rollback(ctx context.Context) error {
	defer t.pool.Release(t.wire)
	return t.tx.Rollback(ctx)
}
