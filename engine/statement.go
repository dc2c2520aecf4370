package engine

import (
	"context"
	"fmt"
	"sync"

	"pglue/errs"
	"pglue/wire"
)

// Statement is a cached prepared statement, keyed by exact query text per
// spec §3 ("not by the fragment AST"). name is "__st<N>" with N a
// per-wire monotonic counter, matching the teacher's own "__st" naming
// habit for internal identifiers (mulldb's tests use similarly
// mechanical synthetic names for generated schema objects).
type Statement struct {
	name  string
	query string

	mu        sync.Mutex
	ready     bool
	err       error
	preparing chan struct{} // non-nil while a parseAndDescribe call is in flight
	paramOIDs []int32
	ctor      *rowCtor // nil if the statement returns no rows

	portalSeq int
}

// nextPortal returns the next per-statement portal name, "<stmt>_<k>".
func (s *Statement) nextPortal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portalSeq++
	return fmt.Sprintf("%s_%d", s.name, s.portalSeq)
}

// getOrPrepare returns the cached Statement for text, preparing it against
// the server on first use. If a previous prepare failed, the cache entry
// was cleared so this retries per spec ("the server may have rejected a
// malformed query, not a reproducible failure").
//
// Concurrent first-uses of the same query text memoize on stmt.preparing
// (spec §3's parse_future) rather than racing two Parse messages at the
// server under the same statement name: the server rejects the second
// with "prepared statement already exists".
func (w *Wire) getOrPrepare(ctx context.Context, text string) (*Statement, error) {
	w.mu.Lock()
	stmt, ok := w.stmtCache[text]
	if !ok {
		w.stmtSeq++
		stmt = &Statement{name: fmt.Sprintf("__st%d", w.stmtSeq), query: text}
		w.stmtCache[text] = stmt
	}
	w.mu.Unlock()

	stmt.mu.Lock()
	if stmt.ready {
		stmt.mu.Unlock()
		return stmt, nil
	}
	if wait := stmt.preparing; wait != nil {
		stmt.mu.Unlock()
		<-wait
		stmt.mu.Lock()
		ready, err := stmt.ready, stmt.err
		stmt.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if ready {
			return stmt, nil
		}
		// The in-flight preparer neither succeeded nor left an error
		// (a context cancellation raced the close); fall through and
		// drive the prepare ourselves.
	}
	done := make(chan struct{})
	stmt.preparing = done
	stmt.mu.Unlock()

	err := w.parseAndDescribe(ctx, stmt)

	stmt.mu.Lock()
	stmt.preparing = nil
	stmt.err = err
	stmt.mu.Unlock()
	close(done)

	if err != nil {
		w.mu.Lock()
		if w.stmtCache[text] == stmt {
			delete(w.stmtCache, text)
		}
		w.mu.Unlock()
		return nil, err
	}
	return stmt, nil
}

func (w *Wire) parseAndDescribe(ctx context.Context, stmt *Statement) error {
	var paramOIDs []int32
	var ctor *rowCtor
	var pipelineErr error

	err := w.pipeline(ctx,
		func() error {
			w.enqueue(wire.Parse(stmt.name, stmt.query, nil))
			w.enqueue(wire.Describe(wire.WhichStatement, stmt.name))
			w.enqueue(wire.Flush())
			return nil
		},
		func() (bool, error) {
			m, err := w.nextMessage()
			if err != nil {
				return false, err
			}
			if err := expectErrorOrOK(m, wire.TagParseComplete); err != nil {
				pipelineErr = err
				return false, nil
			}

			m, err = w.nextMessage()
			if err != nil {
				return false, err
			}
			if m.typ != wire.TagParameterDescr {
				pipelineErr = errs.NewWire("prepare", "unexpected message '%c', wanted ParameterDescription", m.typ)
				return false, nil
			}
			pd, err := wire.DecodeParameterDescription(m.body)
			if err != nil {
				return false, err
			}
			paramOIDs = pd.OIDs

			m, err = w.nextMessage()
			if err != nil {
				return false, err
			}
			switch m.typ {
			case wire.TagNoData:
				ctor = nil
			case wire.TagRowDescription:
				rd, err := wire.DecodeRowDescription(m.body)
				if err != nil {
					return false, err
				}
				ctor = newRowCtor(rd.Columns, w.opts.Codecs)
			default:
				pipelineErr = errs.NewWire("prepare", "unexpected message '%c', wanted NoData/RowDescription", m.typ)
			}
			return false, nil
		},
	)
	if err != nil {
		return err
	}
	if pipelineErr != nil {
		return pipelineErr
	}

	stmt.mu.Lock()
	stmt.paramOIDs = paramOIDs
	stmt.ctor = ctor
	stmt.ready = true
	stmt.mu.Unlock()
	return nil
}

// serializeParams formats each parameter using the codec registered for
// its inferred OID (falling back to text for any position beyond what the
// server described), producing the bind values Bind expects.
func (w *Wire) serializeParams(stmt *Statement, params []any) ([]*string, error) {
	stmt.mu.Lock()
	oids := stmt.paramOIDs
	stmt.mu.Unlock()

	out := make([]*string, len(params))
	for i, p := range params {
		var oid int32
		if i < len(oids) {
			oid = oids[i]
		}
		s, err := w.opts.Codecs.Format(oid, p)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
