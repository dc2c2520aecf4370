package engine

import (
	"context"

	"pglue/errs"
	"pglue/wire"
)

// pipeline runs one write/read pair as described in spec §4.3: the write
// side always ends with a Sync regardless of how write fails; the read
// side always drains to ReadyForQuery regardless of how read fails. This
// guarantees the protocol state machine resynchronizes at a
// ReadyForQuery boundary no matter what went wrong, so a failure in one
// pipeline call never corrupts the next one on the same wire.
//
// wlock and rlock are acquired together, in that fixed order, in the
// calling goroutine before either arm starts. Reserving both slots as one
// atomic admission guarantees that whichever concurrent pipeline() call
// reserves its write turn next also reserves the very next read turn: a
// call's write and its own response can never be split across a
// differently-ordered pair of grants, which would otherwise route a
// response to the wrong caller (spec §5's "no interleaving across
// requests"). Once admitted, the write and read arms still run as
// concurrent goroutines, since a large COPY IN write can outrun outCh's
// buffer and needs its own reader draining the socket to avoid deadlock.
//
// read reports (alreadyAtReady, err): most read functions never see the
// terminal ReadyForQuery themselves and return false so pipeline drains it
// for them; the simple-query reader consumes ReadyForQuery itself (it's
// the loop's own termination condition) and returns true so pipeline
// doesn't block waiting for a second one.
func (w *Wire) pipeline(ctx context.Context, write func() error, read func() (bool, error)) error {
	if err := w.wlock.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := w.rlock.Acquire(ctx, 1); err != nil {
		w.wlock.Release(1)
		return err
	}

	writeErrCh := make(chan error, 1)
	go func() {
		defer w.wlock.Release(1)
		werr := write()
		w.enqueue(wire.Sync())
		writeErrCh <- werr
	}()

	readErrCh := make(chan error, 1)
	go func() {
		defer w.rlock.Release(1)
		alreadyReady, rerr := read()
		if !alreadyReady {
			derr := w.drainToReady()
			if rerr == nil {
				rerr = derr
			}
		}
		readErrCh <- rerr
	}()

	writeErr := <-writeErrCh
	readErr := <-readErrCh
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// drainToReady consumes messages until ReadyForQuery, updating txStatus.
// It is always invoked from pipeline's read arm, success or failure, so a
// caller's early return never desyncs the next pipeline call.
func (w *Wire) drainToReady() error {
	for {
		m, err := w.nextMessage()
		if err != nil {
			return err
		}
		if m.typ == wire.TagReadyForQuery {
			rfq, err := wire.DecodeReadyForQuery(m.body)
			if err != nil {
				return err
			}
			w.mu.Lock()
			w.txStatus = rfq.TxStatus
			w.mu.Unlock()
			return nil
		}
		// Anything else here (a straggling ErrorResponse the caller's read
		// function chose not to consume, etc.) is discarded: draining to
		// resync takes priority over reporting it.
	}
}

// expectErrorOrOK decodes m as either a plain completion message of type
// okTag or an ErrorResponse, the common shape for ParseComplete,
// BindComplete, CloseComplete.
func expectErrorOrOK(m inboundMsg, okTag byte) error {
	switch m.typ {
	case okTag:
		return nil
	case wire.TagErrorResponse:
		return decodePostgresError(m.body)
	default:
		return errs.NewWire("pipeline", "unexpected message '%c', wanted '%c'", m.typ, okTag)
	}
}

func decodePostgresError(body []byte) error {
	fields, err := wire.DecodeErrorFields(body)
	if err != nil {
		return errs.NewWire("pipeline", "malformed ErrorResponse: %v", err)
	}
	return &errs.PostgresError{
		Severity:   fields.Severity(),
		Code:       fields.Code(),
		Message:    fields.Message(),
		Detail:     fields.Detail(),
		Hint:       fields.Hint(),
		Position:   fields.Position(),
		Where:      fields.Where(),
		Schema:     fields.Schema(),
		Table:      fields.Table(),
		Column:     fields.Column(),
		DataType:   fields.DataType(),
		Constraint: fields.Constraint(),
		File:       fields.File(),
		Line:       fields.Line(),
		Routine:    fields.Routine(),
	}
}
