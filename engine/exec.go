package engine

import (
	"context"
	"io"

	"pglue/errs"
	"pglue/wire"
)

// fastExecute is the chunk_size=0 extended-query path: Bind, Execute with
// no row limit, Close, all in one pipeline round trip. If Bind or Execute
// fails the server enters an aborted-transaction state until the next
// Sync; the queued Close is simply ignored by the server in that case, so
// sending it unconditionally (rather than only on the success path) needs
// no special-casing here — drainToReady resyncs either way.
func (w *Wire) fastExecute(ctx context.Context, stmt *Statement, values []*string, req QueryRequest, out chan<- Item) error {
	portal := stmt.nextPortal()
	stmt.mu.Lock()
	ctor := stmt.ctor
	stmt.mu.Unlock()

	var rows []*Row
	var tag string
	var pipelineErr error

	err := w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Bind(portal, stmt.name, values))
			w.enqueue(wire.Execute(portal, 0))
			if err := w.writeCopyIn(req.Stdin); err != nil {
				return err
			}
			w.enqueue(wire.Close(wire.WhichPortal, portal))
			w.enqueue(wire.Flush())
			return nil
		},
		func() (bool, error) {
			m, err := w.nextMessage()
			if err != nil {
				return false, err
			}
			if err := expectErrorOrOK(m, wire.TagBindComplete); err != nil {
				pipelineErr = err
				return false, nil
			}

			for {
				m, err := w.nextMessage()
				if err != nil {
					return false, err
				}
				switch m.typ {
				case wire.TagDataRow:
					if ctor == nil {
						pipelineErr = errs.NewWire("execute", "DataRow with no row description")
						return false, nil
					}
					dr, err := wire.DecodeDataRow(m.body)
					if err != nil {
						return false, err
					}
					row, err := ctor.build(dr)
					if err != nil {
						return false, err
					}
					rows = append(rows, row)
				case wire.TagCommandComplete:
					cc, err := wire.DecodeCommandComplete(m.body)
					if err != nil {
						return false, err
					}
					tag = cc.Tag
				case wire.TagCopyInResponse:
					// writeCopyIn already ran from the write arm; nothing to do.
				case wire.TagCopyOutResponse, wire.TagCopyBothResponse:
					if err := w.copyOutLoop(req.Stdout); err != nil {
						pipelineErr = err
					}
				case wire.TagEmptyQueryResponse:
					// no rows, no tag
				case wire.TagCloseComplete:
					return false, nil
				case wire.TagErrorResponse:
					pipelineErr = decodePostgresError(m.body)
					return false, nil
				default:
					pipelineErr = errs.NewWire("execute", "unexpected message '%c'", m.typ)
					return false, nil
				}
			}
		},
	)
	if err != nil {
		return err
	}
	if pipelineErr != nil {
		return pipelineErr
	}
	if len(rows) > 0 {
		out <- Item{Rows: rows}
	}
	out <- Item{Done: true, Tag: tag}
	return nil
}

// chunkedExecute is the chunk_size>0 path: Bind once, then Execute with a
// row limit repeatedly, each Execute its own pipeline call, for as long as
// PortalSuspended reports more rows and until CommandComplete tells us
// we're done. Named portals
// survive across Sync boundaries until explicitly closed, so this is safe
// to split across multiple round trips.
func (w *Wire) chunkedExecute(ctx context.Context, stmt *Statement, values []*string, req QueryRequest, out chan<- Item) error {
	portal := stmt.nextPortal()
	stmt.mu.Lock()
	ctor := stmt.ctor
	stmt.mu.Unlock()

	bound := false
	defer func() {
		if bound {
			w.closePortal(context.Background(), portal)
		}
	}()

	var pipelineErr error
	err := w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Bind(portal, stmt.name, values))
			if err := w.writeCopyIn(req.Stdin); err != nil {
				return err
			}
			w.enqueue(wire.Flush())
			return nil
		},
		func() (bool, error) {
			m, err := w.nextMessage()
			if err != nil {
				return false, err
			}
			pipelineErr = expectErrorOrOK(m, wire.TagBindComplete)
			return false, nil
		},
	)
	if err != nil {
		return err
	}
	if pipelineErr != nil {
		return pipelineErr
	}
	bound = true

	for {
		rows, tag, suspended, err := w.readRows(ctx, portal, ctor, int32(req.ChunkSize), req.Stdout)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			out <- Item{Rows: rows}
		}
		if !suspended {
			out <- Item{Done: true, Tag: tag}
			return nil
		}
	}
}

// readRows drives one Execute with the given row limit and collects its
// rows, reporting whether the portal was suspended (more rows remain).
func (w *Wire) readRows(ctx context.Context, portal string, ctor *rowCtor, limit int32, stdout io.Writer) ([]*Row, string, bool, error) {
	var rows []*Row
	var tag string
	suspended := false
	var pipelineErr error

	err := w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Execute(portal, limit))
			w.enqueue(wire.Flush())
			return nil
		},
		func() (bool, error) {
			for {
				m, err := w.nextMessage()
				if err != nil {
					return false, err
				}
				switch m.typ {
				case wire.TagDataRow:
					if ctor == nil {
						pipelineErr = errs.NewWire("execute", "DataRow with no row description")
						return false, nil
					}
					dr, err := wire.DecodeDataRow(m.body)
					if err != nil {
						return false, err
					}
					row, err := ctor.build(dr)
					if err != nil {
						return false, err
					}
					rows = append(rows, row)
				case wire.TagCommandComplete:
					cc, err := wire.DecodeCommandComplete(m.body)
					if err != nil {
						return false, err
					}
					tag = cc.Tag
					return false, nil
				case wire.TagPortalSuspended:
					suspended = true
					return false, nil
				case wire.TagCopyInResponse:
					// COPY IN bytes are driven by the write arm; nothing to do.
				case wire.TagCopyOutResponse, wire.TagCopyBothResponse:
					if err := w.copyOutLoop(stdout); err != nil {
						pipelineErr = err
					}
				case wire.TagErrorResponse:
					pipelineErr = decodePostgresError(m.body)
					return false, nil
				default:
					pipelineErr = errs.NewWire("execute", "unexpected message '%c'", m.typ)
					return false, nil
				}
			}
		},
	)
	if err != nil {
		return nil, "", false, err
	}
	if pipelineErr != nil {
		return nil, "", false, pipelineErr
	}
	return rows, tag, suspended, nil
}

// closePortal sends a best-effort Close for a bound portal once
// chunkedExecute's loop exits, whether it finished, failed or stopped
// early; failures are logged, not returned, since the caller has already
// moved on.
func (w *Wire) closePortal(ctx context.Context, portal string) {
	err := w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Close(wire.WhichPortal, portal))
			w.enqueue(wire.Flush())
			return nil
		},
		func() (bool, error) {
			m, err := w.nextMessage()
			if err != nil {
				return false, err
			}
			return false, expectErrorOrOK(m, wire.TagCloseComplete)
		},
	)
	if err != nil {
		w.logWarn("close portal %s: %v", portal, err)
	}
}

// runSimple drives the simple-query protocol: one Query message, one
// round trip, potentially multiple result sets each with their own
// RowDescription. It reaches ReadyForQuery itself (the loop's own
// termination condition) so it reports alreadyAtReady=true to pipeline.
func (w *Wire) runSimple(ctx context.Context, req QueryRequest, out chan<- Item) error {
	var ctor *rowCtor
	var rows []*Row
	var pipelineErr error

	return w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Query(req.Text))
			return w.writeCopyIn(req.Stdin)
		},
		func() (bool, error) {
			for {
				m, err := w.nextMessage()
				if err != nil {
					return false, err
				}
				switch m.typ {
				case wire.TagRowDescription:
					rd, err := wire.DecodeRowDescription(m.body)
					if err != nil {
						return false, err
					}
					ctor = newRowCtor(rd.Columns, w.opts.Codecs)
					rows = nil
				case wire.TagDataRow:
					if ctor == nil {
						pipelineErr = errs.NewWire("query", "DataRow with no row description")
						continue
					}
					dr, err := wire.DecodeDataRow(m.body)
					if err != nil {
						return false, err
					}
					row, err := ctor.build(dr)
					if err != nil {
						return false, err
					}
					rows = append(rows, row)
				case wire.TagCommandComplete:
					cc, err := wire.DecodeCommandComplete(m.body)
					if err != nil {
						return false, err
					}
					if len(rows) > 0 {
						out <- Item{Rows: rows}
						rows = nil
					}
					out <- Item{Done: true, Tag: cc.Tag}
					ctor = nil
				case wire.TagEmptyQueryResponse:
					out <- Item{Done: true}
				case wire.TagCopyInResponse:
					// writeCopyIn already ran from the write arm; nothing to do.
				case wire.TagCopyOutResponse, wire.TagCopyBothResponse:
					if err := w.copyOutLoop(req.Stdout); err != nil {
						pipelineErr = err
					}
				case wire.TagErrorResponse:
					pipelineErr = decodePostgresError(m.body)
				case wire.TagReadyForQuery:
					rfq, err := wire.DecodeReadyForQuery(m.body)
					if err != nil {
						return true, err
					}
					w.mu.Lock()
					w.txStatus = rfq.TxStatus
					w.mu.Unlock()
					return true, pipelineErr
				default:
					return true, errs.NewWire("query", "unexpected message '%c'", m.typ)
				}
			}
		},
	)
}
