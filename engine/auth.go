package engine

import (
	"context"

	"pglue/errs"
	"pglue/sasl"
	"pglue/wire"
)

// authenticate runs the startup handshake: send StartupMessage, answer
// whatever Authentication challenge the server issues (none, cleartext,
// or SASL/SCRAM-SHA-256), then drain ParameterStatus/BackendKeyData up to
// the first ReadyForQuery. It is called once per Connect, before the
// pipeline locks see any other traffic.
func (w *Wire) authenticate(ctx context.Context) error {
	w.enqueue(wire.Startup(w.opts.StartupParameters()))

	for {
		m, err := w.nextMessage()
		if err != nil {
			return err
		}
		switch m.typ {
		case wire.TagAuthentication:
			auth, err := wire.DecodeAuthentication(m.body)
			if err != nil {
				return err
			}
			done, err := w.handleAuth(auth)
			if err != nil {
				return err
			}
			if done {
				continue
			}
		case wire.TagParameterStatus:
			w.handleParameterStatus(m.body)
		case wire.TagBackendKeyData:
			bkd, err := wire.DecodeBackendKeyData(m.body)
			if err != nil {
				return err
			}
			w.mu.Lock()
			w.backendKey = bkd
			w.mu.Unlock()
		case wire.TagNoticeResponse:
			w.handleNotice(m.body)
		case wire.TagNegotiateProtoVer:
			// Best-effort: log and continue: we only ever request the base
			// protocol version, so a negotiation downgrade is informational.
			npv, err := wire.DecodeNegotiateProtocolVersion(m.body)
			if err == nil {
				w.logWarn("server negotiated protocol version, %d unrecognized options", len(npv.UnrecognizedOpts))
			}
		case wire.TagErrorResponse:
			return decodePostgresError(m.body)
		case wire.TagReadyForQuery:
			rfq, err := wire.DecodeReadyForQuery(m.body)
			if err != nil {
				return err
			}
			w.mu.Lock()
			w.txStatus = rfq.TxStatus
			w.mu.Unlock()
			return nil
		default:
			return errs.NewWire("authenticate", "unexpected message '%c' during startup", m.typ)
		}
	}
}

// handleAuth answers one Authentication sub-message. It returns
// done=true for AuthOK (the exchange is complete, but the caller must
// keep looping for ParameterStatus/BackendKeyData/ReadyForQuery).
func (w *Wire) handleAuth(auth *wire.Authentication) (bool, error) {
	switch auth.Status {
	case wire.AuthOK:
		return true, nil
	case wire.AuthCleartextPassword:
		w.enqueue(wire.PasswordMessage(w.opts.Password))
		return false, nil
	case wire.AuthSASL:
		return false, w.doSASL(auth)
	default:
		return false, errs.NewWire("authenticate", "unsupported authentication method %d", auth.Status)
	}
}

// doSASL drives the full SCRAM-SHA-256 exchange inline, consuming the
// AuthenticationSASLContinue/AuthenticationSASLFinal messages itself
// rather than looping back through authenticate's outer switch, since
// they don't share a message tag with the initial AuthenticationSASL.
func (w *Wire) doSASL(initial *wire.Authentication) error {
	mechanism := ""
	for _, m := range initial.SASLMechanisms {
		if m == sasl.Mechanism {
			mechanism = m
			break
		}
	}
	if mechanism == "" {
		return errs.NewWire("authenticate", "server does not support %s", sasl.Mechanism)
	}

	client, err := sasl.NewClient(w.opts.Password)
	if err != nil {
		return err
	}
	w.enqueue(wire.SASLInitialResponse(mechanism, client.InitialResponse()))

	m, err := w.nextMessage()
	if err != nil {
		return err
	}
	if m.typ != wire.TagAuthentication {
		return errs.NewWire("authenticate", "unexpected message '%c', wanted AuthenticationSASLContinue", m.typ)
	}
	cont, err := wire.DecodeAuthentication(m.body)
	if err != nil {
		return err
	}
	if cont.Status != wire.AuthSASLContinue {
		return errs.NewWire("authenticate", "unexpected authentication status %d, wanted SASLContinue", cont.Status)
	}

	final, err := client.ContinueResponse(cont.Data)
	if err != nil {
		return err
	}
	w.enqueue(wire.SASLResponse(final))

	m, err = w.nextMessage()
	if err != nil {
		return err
	}
	if m.typ != wire.TagAuthentication {
		return errs.NewWire("authenticate", "unexpected message '%c', wanted AuthenticationSASLFinal", m.typ)
	}
	fin, err := wire.DecodeAuthentication(m.body)
	if err != nil {
		return err
	}
	if fin.Status != wire.AuthSASLFinal {
		return errs.NewWire("authenticate", "unexpected authentication status %d, wanted SASLFinal", fin.Status)
	}
	if err := client.VerifyFinal(fin.Data); err != nil {
		return err
	}

	m, err = w.nextMessage()
	if err != nil {
		return err
	}
	if m.typ != wire.TagAuthentication {
		return errs.NewWire("authenticate", "unexpected message '%c', wanted AuthenticationOK", m.typ)
	}
	ok, err := wire.DecodeAuthentication(m.body)
	if err != nil {
		return err
	}
	if ok.Status != wire.AuthOK {
		return errs.NewWire("authenticate", "unexpected authentication status %d, wanted AuthOK", ok.Status)
	}
	return nil
}
