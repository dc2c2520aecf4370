package engine

import (
	"context"
	"io"
)

// Item is one element of a Wire's row-chunk stream: either a non-empty
// Rows chunk, or the terminal element carrying Tag (and Done=true). This
// is the systems-language rendering of the design note's "async iterator
// whose done carries a final {tag} value" — a Go channel takes the place
// of an async generator.
type Item struct {
	Rows []*Row
	Tag  string
	Done bool
	Err  error
}

// QueryRequest is the frozen set of execution options a Query overlays
// before invoking RunQuery: {simple, chunk_size, stdin, stdout} per
// spec §4.4.
type QueryRequest struct {
	Text      string
	Params    []any
	Simple    bool
	ChunkSize int
	Stdin     io.Reader
	Stdout    io.Writer
}

// RunQuery drives one query to completion, sending Items on the returned
// channel as chunks become available. Each completed statement ends with a
// Done item carrying its tag; a simple-protocol query with several
// statements sends several, the last carrying the final tag. The channel
// is closed after the last Done item (or after a single Err item on
// failure). The caller must drain the
// channel to completion or cancel ctx, or the underlying pipeline
// goroutines will block forever on rlock/wlock.
func (w *Wire) RunQuery(ctx context.Context, req QueryRequest) <-chan Item {
	out := make(chan Item, 1)
	go func() {
		defer close(out)
		var err error
		if req.Simple {
			err = w.runSimple(ctx, req, out)
		} else {
			err = w.runExtended(ctx, req, out)
		}
		if err != nil {
			out <- Item{Err: err}
		}
	}()
	return out
}

func (w *Wire) runExtended(ctx context.Context, req QueryRequest, out chan<- Item) error {
	stmt, err := w.getOrPrepare(ctx, req.Text)
	if err != nil {
		return err
	}
	values, err := w.serializeParams(stmt, req.Params)
	if err != nil {
		return err
	}
	if req.ChunkSize > 0 {
		return w.chunkedExecute(ctx, stmt, values, req, out)
	}
	return w.fastExecute(ctx, stmt, values, req, out)
}
