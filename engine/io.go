package engine

import (
	"io"

	"pglue/errs"
	"pglue/wire"
)

// readLoop is the one reader task per connected Wire (spec invariant).
// It frames incoming bytes, filters the three asynchronous message types
// inline (NoticeResponse, ParameterStatus, NotificationResponse), and
// forwards everything else to inCh for pipeline consumers.
func (w *Wire) readLoop() {
	w.mu.Lock()
	fr, inCh, closedCh := w.fr, w.inCh, w.closed
	w.mu.Unlock()

	for {
		typ, body, err := fr.ReadTyped()
		if err != nil {
			if err != io.EOF {
				w.logError("read: %v", err)
			}
			w.closeWithReason(err)
			return
		}

		switch typ {
		case wire.TagNoticeResponse:
			w.handleNotice(body)
			continue
		case wire.TagParameterStatus:
			w.handleParameterStatus(body)
			continue
		case wire.TagNotificationResp:
			w.handleNotification(body)
			continue
		}

		select {
		case inCh <- inboundMsg{typ: typ, body: body}:
		case <-closedCh:
			return
		}
	}
}

func (w *Wire) handleNotice(body []byte) {
	fields, err := wire.DecodeErrorFields(body)
	if err != nil {
		w.logWarn("malformed NoticeResponse: %v", err)
		return
	}
	ev := NoticeEvent{Severity: fields.Severity(), Code: fields.Code(), Message: fields.Message()}
	switch ev.Severity {
	case "WARNING":
		w.opts.Logger.Warn().Str("code", ev.Code).Msg(ev.Message)
	case "DEBUG", "LOG", "INFO", "NOTICE":
		w.opts.Logger.Info().Str("code", ev.Code).Msg(ev.Message)
	default:
		w.opts.Logger.Info().Str("code", ev.Code).Msg(ev.Message)
	}
	w.emitNotice(ev)
}

func (w *Wire) handleParameterStatus(body []byte) {
	ps, err := wire.DecodeParameterStatus(body)
	if err != nil {
		w.logWarn("malformed ParameterStatus: %v", err)
		return
	}
	w.mu.Lock()
	var prev *string
	if v, ok := w.params[ps.Name]; ok {
		p := v
		prev = &p
	}
	w.params[ps.Name] = ps.Value
	w.mu.Unlock()
	w.emitParameter(ParameterEvent{Name: ps.Name, Value: ps.Value, Prev: prev})
}

func (w *Wire) handleNotification(body []byte) {
	nr, err := wire.DecodeNotificationResponse(body)
	if err != nil {
		w.logWarn("malformed NotificationResponse: %v", err)
		return
	}
	ev := NotifyEvent{Channel: nr.Channel, Payload: nr.Payload, ProcessID: nr.ProcessID}
	w.emitNotify(ev)
	w.dispatchChannel(ev)
}

// writeLoop is the one writer task per connected Wire. It drains outCh,
// opportunistically concatenating any messages already queued into a
// single socket write to reduce syscalls under pipelining.
func (w *Wire) writeLoop() {
	w.mu.Lock()
	conn, outCh, closedCh := w.conn, w.outCh, w.closed
	w.mu.Unlock()

	for {
		var batch []byte
		select {
		case buf, ok := <-outCh:
			if !ok {
				return
			}
			batch = buf
		case <-closedCh:
			return
		}

	drain:
		for {
			select {
			case more, ok := <-outCh:
				if !ok {
					break drain
				}
				batch = append(batch, more...)
			default:
				break drain
			}
		}

		if _, err := conn.Write(batch); err != nil {
			w.logError("write: %v", err)
			w.closeWithReason(err)
			return
		}
	}
}

// nextMessage waits for the next non-asynchronous inbound message, or
// returns ErrClosed if the wire closes first. A message pushed back with
// pushback is returned before consulting inCh.
func (w *Wire) nextMessage() (inboundMsg, error) {
	w.mu.Lock()
	if w.pending != nil {
		m := *w.pending
		w.pending = nil
		w.mu.Unlock()
		return m, nil
	}
	inCh, closedCh := w.inCh, w.closed
	w.mu.Unlock()

	select {
	case m := <-inCh:
		return m, nil
	case <-closedCh:
		return inboundMsg{}, errs.ErrClosed
	}
}

// pushback returns m to the front of the queue for the next nextMessage
// call, used by copyOutLoop to hand back a trailing CommandComplete that
// belongs to the caller's own read loop.
func (w *Wire) pushback(m inboundMsg) {
	w.mu.Lock()
	w.pending = &m
	w.mu.Unlock()
}
