// Package pglue is the public facade over the wire engine, query
// combinators, and connection pool: a native PostgreSQL client speaking
// the v3 frontend/backend protocol directly, with no cgo dependency on
// libpq.
package pglue

import (
	"context"
	"time"

	"pglue/engine"
	"pglue/fragment"
	"pglue/options"
	"pglue/pool"
	"pglue/query"
)

// Wire is a single physical connection. See package engine for its full
// method set (Begin, Listen, Notify, RunQuery, the On* event
// subscriptions, Close).
type Wire = engine.Wire

// Pool is a bounded set of pooled connections. See package pool.
type Pool = pool.Pool

// Options is the connection-parameter record consumed by Connect.
type Options = options.Options

// Transaction is a handle onto one frame of a Wire's savepoint stack.
type Transaction = engine.Transaction

// Row is one decoded result row.
type Row = engine.Row

// Connect opens and authenticates a single Wire.
func Connect(ctx context.Context, opts *Options) (*Wire, error) {
	w := engine.New(opts)
	if err := w.Connect(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// NewPool constructs a connection pool without eagerly opening any
// connections; the first Acquire dials the first wire.
func NewPool(opts *Options, maxConnections int, idleTimeout time.Duration) *Pool {
	return pool.New(opts, maxConnections, idleTimeout)
}

// SQL starts a fragment builder for composing injection-safe queries;
// see package fragment for Raw/Param/Ident/Frag and Join/Array/Row.
func SQL() *fragment.Fragment { return fragment.New() }

// Query builds a query.Query from a composed fragment against w.
func Query(w *Wire, f *fragment.Fragment) *query.Query {
	return query.New(w, f)
}

// QueryText builds a query.Query from raw SQL text and positional params.
func QueryText(w *Wire, text string, params ...any) *query.Query {
	return query.NewText(w, text, params...)
}

// PoolQuery builds a query.Query that acquires a wire from p for the
// duration of one query, releasing it once the stream completes (spec
// §4.5's pool convenience query).
func PoolQuery(p *Pool, f *fragment.Fragment) *query.Query {
	return query.New(&poolWire{p: p}, f)
}

// poolWire adapts a *pool.Pool to query.Wire, acquiring a connection for
// the lifetime of one RunQuery call and releasing it once the returned
// channel is drained.
type poolWire struct {
	p *Pool
}

func (pw *poolWire) RunQuery(ctx context.Context, req engine.QueryRequest) <-chan engine.Item {
	out := make(chan engine.Item, 1)
	go func() {
		defer close(out)
		w, err := pw.p.Acquire(ctx)
		if err != nil {
			out <- engine.Item{Err: err}
			return
		}
		defer pw.p.Release(w)
		for item := range w.RunQuery(ctx, req) {
			out <- item
		}
	}()
	return out
}
