package engine

import (
	"context"
	"fmt"
	"sync"

	"pglue/fragment"
	"pglue/wire"
)

// channel is one entry in a Wire's LISTEN registry: a channel name and
// its subscriber callbacks. The registry survives reconnect; the
// callbacks are re-attached to whatever NotifyEvents the new connection
// produces because dispatch is keyed by name, not by connection.
type channel struct {
	name        string
	mu          sync.Mutex
	subscribers []func(NotifyEvent)
}

// Listen registers name in the channel registry, issuing LISTEN on the
// server the first time it's seen; concurrent Listen calls for the same
// name share one registry entry. It logs a warning if issued mid
// transaction, since LISTEN's visibility semantics inside a transaction
// are surprising (spec §4.3).
func (w *Wire) Listen(ctx context.Context, name string, fn func(NotifyEvent)) error {
	w.mu.Lock()
	ch, existed := w.channels[name]
	if !existed {
		ch = &channel{name: name}
		w.channels[name] = ch
	}
	txStatus := w.txStatus
	w.mu.Unlock()

	if txStatus != wire.TxIdle {
		w.logWarn("LISTEN %q issued while transaction is open", name)
	}

	if !existed {
		stmt := fmt.Sprintf("LISTEN %s", fragment.QuoteIdent(name))
		if err := w.runControlStatement(ctx, stmt); err != nil {
			w.mu.Lock()
			delete(w.channels, name)
			w.mu.Unlock()
			return err
		}
	}

	ch.mu.Lock()
	ch.subscribers = append(ch.subscribers, fn)
	ch.mu.Unlock()
	return nil
}

// Unlisten removes name from the registry and issues UNLISTEN.
func (w *Wire) Unlisten(ctx context.Context, name string) error {
	w.mu.Lock()
	_, ok := w.channels[name]
	if ok {
		delete(w.channels, name)
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}
	stmt := fmt.Sprintf("UNLISTEN %s", fragment.QuoteIdent(name))
	return w.runControlStatement(ctx, stmt)
}

// Notify sends a NOTIFY via pg_notify, avoiding the string-literal
// quoting SQL's bare NOTIFY syntax would otherwise require for the
// payload.
func (w *Wire) Notify(ctx context.Context, channel, payload string) error {
	ch := w.RunQuery(ctx, QueryRequest{
		Text:   "SELECT pg_notify($1, $2)",
		Params: []any{channel, payload},
	})
	for item := range ch {
		if item.Err != nil {
			return item.Err
		}
	}
	return nil
}

// dispatchChannel fans a NotificationResponse out to every subscriber
// registered for its channel name.
func (w *Wire) dispatchChannel(ev NotifyEvent) {
	w.mu.Lock()
	ch, ok := w.channels[ev.Channel]
	w.mu.Unlock()
	if !ok {
		return
	}
	ch.mu.Lock()
	subs := append([]func(NotifyEvent){}, ch.subscribers...)
	ch.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// registeredChannelNames snapshots the current registry, used by Connect
// to decide whether a post-reconnect replay is needed.
func (w *Wire) registeredChannelNames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.channels))
	for name := range w.channels {
		names = append(names, name)
	}
	return names
}

// replayListens re-issues LISTEN for every name in names, concurrently,
// on a freshly reconnected wire, per spec's reconnect invariant.
func (w *Wire) replayListens(names []string) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			stmt := fmt.Sprintf("LISTEN %s", fragment.QuoteIdent(name))
			if err := w.runControlStatement(context.Background(), stmt); err != nil {
				w.logWarn("replay LISTEN %q: %v", name, err)
			}
		}(name)
	}
	wg.Wait()
}
