package engine

import (
	"context"

	"pglue/errs"
)

// Transaction is a handle onto one frame of a Wire's savepoint stack. It
// is returned by Begin and is valid until Commit or Rollback pops it (or
// any frame below it, which invalidates it too).
type Transaction struct {
	w     *Wire
	depth int
}

// Begin pushes a new frame onto the savepoint stack: BEGIN at depth 0,
// SAVEPOINT __pglue_tx at any deeper depth, per spec §4.3.
func (w *Wire) Begin(ctx context.Context) (*Transaction, error) {
	w.mu.Lock()
	depth := len(w.txStack)
	w.mu.Unlock()

	var stmt string
	if depth == 0 {
		stmt = "BEGIN"
	} else {
		stmt = "SAVEPOINT __pglue_tx"
	}
	if err := w.runControlStatement(ctx, stmt); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.txStack = append(w.txStack, txEntry{tag: stmt, depth: depth})
	w.mu.Unlock()
	return &Transaction{w: w, depth: depth}, nil
}

// Commit closes t and everything nested inside it: COMMIT at depth 0,
// RELEASE __pglue_tx otherwise. Committing an entry no longer present in
// the stack (already closed by an enclosing commit/rollback) is a wire
// error, per spec.
func (t *Transaction) Commit(ctx context.Context) error {
	idx, err := t.w.locate(t.depth)
	if err != nil {
		return err
	}
	stmt := "RELEASE __pglue_tx"
	if idx == 0 {
		stmt = "COMMIT"
	}
	if err := t.w.runControlStatement(ctx, stmt); err != nil {
		return err
	}
	t.w.truncate(idx)
	return nil
}

// Rollback closes t and everything nested inside it: ROLLBACK at depth
// 0, ROLLBACK TO __pglue_tx followed by RELEASE __pglue_tx otherwise (a
// rolled-back savepoint must still be released to leave the stack in the
// state the server expects for further nesting).
func (t *Transaction) Rollback(ctx context.Context) error {
	idx, err := t.w.locate(t.depth)
	if err != nil {
		return err
	}
	if idx == 0 {
		if err := t.w.runControlStatement(ctx, "ROLLBACK"); err != nil {
			return err
		}
		t.w.truncate(idx)
		return nil
	}
	if err := t.w.runControlStatement(ctx, "ROLLBACK TO __pglue_tx"); err != nil {
		return err
	}
	if err := t.w.runControlStatement(ctx, "RELEASE __pglue_tx"); err != nil {
		return err
	}
	t.w.truncate(idx)
	return nil
}

// Dispose rolls t back iff it is still open, matching the scoped-disposal
// behavior spec §4.4 requires of callers that use a transaction as a
// deferred cleanup. Any rollback failure is returned to the caller.
func (t *Transaction) Dispose(ctx context.Context) error {
	t.w.mu.Lock()
	_, err := t.w.locateLocked(t.depth)
	t.w.mu.Unlock()
	if err != nil {
		return nil // already closed, nothing to do
	}
	return t.Rollback(ctx)
}

func (w *Wire) locate(depth int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locateLocked(depth)
}

func (w *Wire) locateLocked(depth int) (int, error) {
	for i, e := range w.txStack {
		if e.depth == depth {
			return i, nil
		}
	}
	return 0, errs.NewWire("transaction", "no longer open")
}

func (w *Wire) truncate(idx int) {
	w.mu.Lock()
	w.txStack = w.txStack[:idx]
	w.mu.Unlock()
}

// runControlStatement executes a fixed transaction-control statement as
// a simple query and discards its result rows.
func (w *Wire) runControlStatement(ctx context.Context, stmt string) error {
	ch := w.RunQuery(ctx, QueryRequest{Text: stmt, Simple: true})
	for item := range ch {
		if item.Err != nil {
			return item.Err
		}
	}
	return nil
}
