// Package query provides the fluent Query object built by New/NewText
// (and pglue.Query/QueryText):
// a frozen request plus chainable execution modifiers, filters, and a
// single terminal map, matching the design note's "combinators preserve
// the End payload" for row-chunk iteration.
package query

import (
	"context"
	"io"

	"pglue/engine"
	"pglue/errs"
	"pglue/fragment"
)

// Wire is the subset of *engine.Wire a Query needs, letting tests supply
// a fake without dragging in the whole wire engine.
type Wire interface {
	RunQuery(ctx context.Context, req engine.QueryRequest) <-chan engine.Item
}

// Query is an immutable-by-convention request builder: each modifier
// (Simple, Chunked, Stdin, Stdout, Filter) returns a modified copy, so a
// base Query is safe to reuse and re-run.
type Query struct {
	wire    Wire
	text    string
	params  []any
	simple  bool
	chunk   int
	stdin   io.Reader
	stdout  io.Writer
	filters []func(*engine.Row) bool
}

// New builds a Query from a composed fragment, formatting it once into
// positional-parameter SQL text.
func New(w Wire, f *fragment.Fragment) *Query {
	text, params := fragment.Format(f)
	return &Query{wire: w, text: text, params: params}
}

// NewText builds a Query from raw SQL text and positional parameters, the
// entry point for statements composed outside the fragment builder.
func NewText(w Wire, text string, params ...any) *Query {
	return &Query{wire: w, text: text, params: params}
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]func(*engine.Row) bool{}, q.filters...)
	return &c
}

// Simple switches the query to the simple protocol (spec §4.4):
// multi-statement text, no parameters, one round trip.
func (q *Query) Simple() *Query {
	c := q.clone()
	c.simple = true
	return c
}

// Chunked sets the row chunk size for the extended-query streaming path.
// size<=0 reverts to the unbounded fastExecute path.
func (q *Query) Chunked(size int) *Query {
	c := q.clone()
	c.chunk = size
	return c
}

// Stdin attaches a COPY IN source.
func (q *Query) Stdin(r io.Reader) *Query {
	c := q.clone()
	c.stdin = r
	return c
}

// Stdout attaches a COPY OUT sink.
func (q *Query) Stdout(w io.Writer) *Query {
	c := q.clone()
	c.stdout = w
	return c
}

// Filter adds a row predicate applied before Map/Collect/First see rows;
// filters compose left to right.
func (q *Query) Filter(pred func(*engine.Row) bool) *Query {
	c := q.clone()
	c.filters = append(c.filters, pred)
	return c
}

func (q *Query) request() engine.QueryRequest {
	return engine.QueryRequest{
		Text:      q.text,
		Params:    q.params,
		Simple:    q.simple,
		ChunkSize: q.chunk,
		Stdin:     q.stdin,
		Stdout:    q.stdout,
	}
}

func (q *Query) filtered(rows []*engine.Row) []*engine.Row {
	if len(q.filters) == 0 {
		return rows
	}
	out := make([]*engine.Row, 0, len(rows))
	for _, r := range rows {
		keep := true
		for _, f := range q.filters {
			if !f(r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// Chunk is one filtered batch of rows delivered by Chunks, or the
// terminal element carrying Tag (clean completion) or Err (the query
// failed) with Done=true.
type Chunk struct {
	Rows []*engine.Row
	Tag  string
	Err  error
	Done bool
}

// Chunks streams filtered row batches on a channel, mirroring the design
// note's "async iterator whose done carries a final {tag} value". A
// failure mid-stream surfaces as a terminal Chunk with Err set, so a
// consumer can distinguish it from clean completion.
func (q *Query) Chunks(ctx context.Context) <-chan Chunk {
	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		var tag string
		for item := range q.wire.RunQuery(ctx, q.request()) {
			if item.Err != nil {
				out <- Chunk{Done: true, Err: item.Err}
				return
			}
			if len(item.Rows) > 0 {
				rows := q.filtered(item.Rows)
				if len(rows) > 0 {
					out <- Chunk{Rows: rows}
				}
			}
			if item.Done {
				tag = item.Tag
			}
		}
		out <- Chunk{Done: true, Tag: tag}
	}()
	return out
}

// Collect gathers every filtered row and the final command tag.
func (q *Query) Collect(ctx context.Context) ([]*engine.Row, string, error) {
	var rows []*engine.Row
	var tag string
	for item := range q.wire.RunQuery(ctx, q.request()) {
		if item.Err != nil {
			return nil, "", item.Err
		}
		if len(item.Rows) > 0 {
			rows = append(rows, q.filtered(item.Rows)...)
		}
		if item.Done {
			tag = item.Tag
		}
	}
	return rows, tag, nil
}

// Execute runs the query for its command tag only, discarding rows.
func (q *Query) Execute(ctx context.Context) (string, error) {
	_, tag, err := q.Collect(ctx)
	return tag, err
}

// Map runs fn over every filtered row and returns the transformed slice,
// the single terminal shape-change the Go rendering of the design note's
// row-chunk combinators allows (see design decision on chained maps).
func Map[T any](ctx context.Context, q *Query, fn func(*engine.Row) T) ([]T, string, error) {
	rows, tag, err := q.Collect(ctx)
	if err != nil {
		return nil, "", err
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = fn(r)
	}
	return out, tag, nil
}

// First returns the first filtered row, or a type error if none arrived
// (spec §7: "first() on an empty result is a type error").
func (q *Query) First(ctx context.Context) (*engine.Row, error) {
	rows, _, err := q.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &errs.TypeError{Message: "expected one row, got none"}
	}
	return rows[0], nil
}

// FirstOr returns the first filtered row, or def if none arrived.
func (q *Query) FirstOr(ctx context.Context, def *engine.Row) (*engine.Row, error) {
	rows, _, err := q.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return def, nil
	}
	return rows[0], nil
}

// Count returns the number of filtered rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	rows, _, err := q.Collect(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
