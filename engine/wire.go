// Package engine implements the per-connection wire engine: the socket
// I/O tasks, pipeline locks, prepared-statement cache, transaction and
// channel state, COPY plumbing, and reconnect loop described in spec §4.3.
// It is the heart of the module; everything else (query composition, the
// pool, the public facade) is built on top of a *Wire.
package engine

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"pglue/errs"
	"pglue/options"
	"pglue/wire"
)

// txEntry is one frame of the savepoint stack.
type txEntry struct {
	tag   string
	depth int
}

// Wire owns one physical connection and everything scoped to its
// lifetime: server parameters, transaction stack, statement cache, and
// channel registry. Exactly one reader and one writer goroutine run while
// it is connected, per spec's concurrency invariant.
type Wire struct {
	events

	opts *options.Options

	mu        sync.Mutex
	conn      net.Conn
	fr        *wire.FrameReader
	outCh     chan []byte
	inCh      chan inboundMsg
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	rlock *semaphore.Weighted
	wlock *semaphore.Weighted

	params     map[string]string
	txStatus   byte
	txStack    []txEntry
	stmtCache  map[string]*Statement
	stmtSeq    int
	channels   map[string]*channel
	backendKey *wire.BackendKeyData

	connected     bool
	explicitClose bool
	reconnectWG   sync.WaitGroup

	pending *inboundMsg // one-slot pushback buffer for nextMessage
}

type inboundMsg struct {
	typ  byte
	body []byte
}

// New constructs a disconnected Wire for opts. Call Connect before use.
func New(opts *options.Options) *Wire {
	return &Wire{
		opts:      opts,
		rlock:     semaphore.NewWeighted(1),
		wlock:     semaphore.NewWeighted(1),
		params:    map[string]string{},
		txStatus:  wire.TxIdle,
		stmtCache: map[string]*Statement{},
		channels:  map[string]*channel{},
	}
}

// Params returns a snapshot of the server parameters map (spec §3).
func (w *Wire) Params() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.params))
	for k, v := range w.params {
		out[k] = v
	}
	return out
}

// TxStatus returns the last-observed ReadyForQuery transaction status.
func (w *Wire) TxStatus() byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.txStatus
}

// Connect dials the server (TCP or Unix-domain per spec §6), performs the
// startup handshake and authentication, and starts the reader/writer
// tasks. On success it schedules the reconnect timer's arming condition
// (only fires on a later unexpected close).
func (w *Wire) Connect(ctx context.Context) error {
	if err := w.rlock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.rlock.Release(1)
	if err := w.wlock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.wlock.Release(1)

	conn, err := dial(ctx, w.opts)
	if err != nil {
		return errs.NewWire("connect", "%v", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.fr = wire.NewFrameReader(conn)
	w.outCh = make(chan []byte, 64)
	w.inCh = make(chan inboundMsg, 64)
	w.closed = make(chan struct{})
	w.closeOnce = sync.Once{}
	w.closeErr = nil
	w.params = map[string]string{}
	w.txStatus = wire.TxIdle
	w.txStack = nil
	w.stmtCache = map[string]*Statement{}
	w.stmtSeq = 0
	w.explicitClose = false
	w.mu.Unlock()

	go w.readLoop()
	go w.writeLoop()

	if err := w.authenticate(ctx); err != nil {
		w.closeWithReason(err)
		return err
	}

	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
	w.emitConnect()
	w.logInfo("connected to %s:%d", w.opts.Host, w.opts.Port)

	names := w.registeredChannelNames()
	if len(names) > 0 {
		go w.replayListens(names)
	}
	return nil
}

func dial(ctx context.Context, o *options.Options) (net.Conn, error) {
	var d net.Dialer
	if strings.HasPrefix(o.Host, "/") {
		addr := fmt.Sprintf("%s/.s.PGSQL.%d", o.Host, o.Port)
		return d.DialContext(ctx, "unix", addr)
	}
	addr := fmt.Sprintf("%s:%d", o.Host, o.Port)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
	}
	return conn, nil
}

// Close terminates the connection. If graceful is true it sends a
// Terminate message first; either way pending waiters see ErrClosed and,
// per spec, reconnect is NOT scheduled for an explicit close.
func (w *Wire) Close(graceful bool) error {
	w.mu.Lock()
	conn := w.conn
	w.explicitClose = true
	w.mu.Unlock()

	if graceful && conn != nil {
		w.enqueue(wire.Terminate())
		time.Sleep(5 * time.Millisecond) // best-effort flush before hangup
	}
	w.closeWithReason(nil)
	w.reconnectWG.Wait()
	return nil
}

// Done returns a channel closed when the wire has disconnected.
func (w *Wire) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// closeWithReason tears down the socket and goroutines, resets
// connection-scoped state, and (if reconnect is configured and this was
// not an explicit Close) arms the reconnect timer.
func (w *Wire) closeWithReason(reason error) {
	w.mu.Lock()
	if w.closed == nil {
		w.mu.Unlock()
		return
	}
	select {
	case <-w.closed:
		w.mu.Unlock()
		return
	default:
	}
	conn := w.conn
	explicit := w.explicitClose
	w.closeErr = reason
	closedCh := w.closed
	w.connected = false
	w.txStatus = wire.TxIdle
	w.txStack = nil
	w.stmtCache = map[string]*Statement{}
	w.params = map[string]string{}
	w.mu.Unlock()

	w.closeOnce.Do(func() {
		if conn != nil {
			conn.Close()
		}
		close(closedCh)
	})

	if reason != nil {
		w.logWarn("connection closed: %v", reason)
	}
	w.emitClose(reason)

	if !explicit && w.opts.ReconnectDelay != nil {
		w.reconnectWG.Add(1)
		go w.scheduleReconnect()
	}
}

func (w *Wire) scheduleReconnect() {
	defer w.reconnectWG.Done()
	delay := *w.opts.ReconnectDelay
	time.Sleep(delay)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Connect(ctx); err != nil {
		w.logWarn("reconnect failed: %v", err)
	}
}

func (w *Wire) logInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.opts.Logger.Info().Msg(msg)
	w.emitLog(LogEvent{Level: "info", Message: msg})
}

func (w *Wire) logWarn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.opts.Logger.Warn().Msg(msg)
	w.emitLog(LogEvent{Level: "warn", Message: msg})
}

func (w *Wire) logError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.opts.Logger.Error().Msg(msg)
	w.emitLog(LogEvent{Level: "error", Message: msg})
}

// enqueue hands buf to the writer task. It never blocks past the wire's
// close: if outCh is unbuffered-full and the wire closes, the send is
// abandoned rather than leaking the caller forever.
func (w *Wire) enqueue(buf []byte) {
	w.mu.Lock()
	ch, closedCh := w.outCh, w.closed
	w.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- buf:
	case <-closedCh:
	}
}
