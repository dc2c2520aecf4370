package engine_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pglue/engine"
	"pglue/options"
	"pglue/wire"
)

// fakeServer accepts exactly one connection and hands it to handle, which
// speaks the backend side of the wire protocol by hand.
func fakeServer(t *testing.T, handle func(t *testing.T, conn net.Conn, fr *wire.FrameReader)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fr := wire.NewFrameReader(conn)
		handle(t, conn, fr)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func msg(typ byte, build func(b *wire.Builder)) []byte {
	b := wire.NewBuilder()
	b.Reset(typ)
	build(b)
	return b.Finish()
}

func authOK() []byte {
	return msg(wire.TagAuthentication, func(b *wire.Builder) { b.Int32(wire.AuthOK) })
}

func authCleartext() []byte {
	return msg(wire.TagAuthentication, func(b *wire.Builder) { b.Int32(wire.AuthCleartextPassword) })
}

func parameterStatus(name, value string) []byte {
	return msg(wire.TagParameterStatus, func(b *wire.Builder) {
		b.CString(name)
		b.CString(value)
	})
}

func backendKeyData() []byte {
	return msg(wire.TagBackendKeyData, func(b *wire.Builder) {
		b.Int32(4242)
		b.Int32(9999)
	})
}

func readyForQuery(status byte) []byte {
	return msg(wire.TagReadyForQuery, func(b *wire.Builder) { b.Byte(status) })
}

// acceptStartup consumes the client's initial untyped Startup packet.
func acceptStartup(t *testing.T, fr *wire.FrameReader) {
	t.Helper()
	_, err := fr.ReadUntyped()
	require.NoError(t, err)
}

func performBasicHandshake(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
	t.Helper()
	acceptStartup(t, fr)
	_, err := conn.Write(authOK())
	require.NoError(t, err)
	_, err = conn.Write(parameterStatus("server_version", "16.1"))
	require.NoError(t, err)
	_, err = conn.Write(backendKeyData())
	require.NoError(t, err)
	_, err = conn.Write(readyForQuery(wire.TxIdle))
	require.NoError(t, err)
}

func testOptions(host string, port int) *options.Options {
	return options.NewOptions(host, "alice", options.WithPort(port), options.WithDatabase("appdb"))
}

func TestConnectAuthOK(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	host, port := fakeServer(t, func(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
		performBasicHandshake(t, conn, fr)
		buf := make([]byte, 1)
		conn.Read(buf) // keep the connection open until the test closes it
	})

	w := engine.New(testOptions(host, port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Connect(ctx))
	defer w.Close(false)

	require.Equal(t, wire.TxIdle, w.TxStatus())
	require.Equal(t, "16.1", w.Params()["server_version"])
}

func TestConnectCleartextPassword(t *testing.T) {
	var gotPassword []byte
	host, port := fakeServer(t, func(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
		acceptStartup(t, fr)
		_, err := conn.Write(authCleartext())
		require.NoError(t, err)

		typ, body, err := fr.ReadTyped()
		require.NoError(t, err)
		require.Equal(t, wire.TagPasswordMessage, typ)
		gotPassword = body

		_, err = conn.Write(authOK())
		require.NoError(t, err)
		_, err = conn.Write(readyForQuery(wire.TxIdle))
		require.NoError(t, err)
		buf := make([]byte, 1)
		conn.Read(buf)
	})

	opts := testOptions(host, port)
	opts.Password = "s3cret"
	w := engine.New(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Connect(ctx))
	defer w.Close(false)

	require.Equal(t, "s3cret\x00", string(gotPassword))
}

func TestSimpleQueryRoundTrip(t *testing.T) {
	host, port := fakeServer(t, func(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
		performBasicHandshake(t, conn, fr)

		typ, body, err := fr.ReadTyped()
		require.NoError(t, err)
		require.Equal(t, wire.TagQuery, typ)
		c := wire.NewCursor(body)
		text, err := c.CString()
		require.NoError(t, err)
		require.Equal(t, "SELECT 1", text)

		rd := msg(wire.TagRowDescription, func(b *wire.Builder) {
			b.Array(1, func(int) {
				b.CString("?column?")
				b.Int32(0)
				b.Int16(0)
				b.Int32(23)
				b.Int16(4)
				b.Int32(-1)
				b.Int16(0)
			})
		})
		dr := msg(wire.TagDataRow, func(b *wire.Builder) { b.Array(1, func(int) { b.BytesLP([]byte("1")) }) })
		cc := msg(wire.TagCommandComplete, func(b *wire.Builder) { b.CString("SELECT 1") })

		_, err = conn.Write(rd)
		require.NoError(t, err)
		_, err = conn.Write(dr)
		require.NoError(t, err)
		_, err = conn.Write(cc)
		require.NoError(t, err)
		_, err = conn.Write(readyForQuery(wire.TxIdle))
		require.NoError(t, err)
		buf := make([]byte, 1)
		conn.Read(buf)
	})

	w := engine.New(testOptions(host, port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Connect(ctx))
	defer w.Close(false)

	items := w.RunQuery(ctx, engine.QueryRequest{Text: "SELECT 1", Simple: true})

	var rows []*engine.Row
	var tag string
	for item := range items {
		require.NoError(t, item.Err)
		rows = append(rows, item.Rows...)
		if item.Done {
			tag = item.Tag
		}
	}
	require.Equal(t, "SELECT 1", tag)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].Values()[0])
}

func TestSimpleQueryErrorResponse(t *testing.T) {
	host, port := fakeServer(t, func(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
		performBasicHandshake(t, conn, fr)

		typ, _, err := fr.ReadTyped()
		require.NoError(t, err)
		require.Equal(t, wire.TagQuery, typ)

		errMsg := msg(wire.TagErrorResponse, func(b *wire.Builder) {
			b.ByteN([]byte("SERROR\x00"))
			b.ByteN([]byte("C42601\x00"))
			b.ByteN([]byte("Msyntax error\x00"))
			b.Byte(0)
		})
		_, err = conn.Write(errMsg)
		require.NoError(t, err)
		_, err = conn.Write(readyForQuery(wire.TxIdle))
		require.NoError(t, err)
		buf := make([]byte, 1)
		conn.Read(buf)
	})

	w := engine.New(testOptions(host, port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Connect(ctx))
	defer w.Close(false)

	items := w.RunQuery(ctx, engine.QueryRequest{Text: "GARBAGE", Simple: true})
	var lastErr error
	for item := range items {
		if item.Err != nil {
			lastErr = item.Err
		}
	}
	require.Error(t, lastErr)
}

func TestCloseTerminatesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	closed := make(chan struct{})
	host, port := fakeServer(t, func(t *testing.T, conn net.Conn, fr *wire.FrameReader) {
		performBasicHandshake(t, conn, fr)
		buf := make([]byte, 1)
		conn.Read(buf) // block until the client hangs up or sends Terminate
		close(closed)
	})

	w := engine.New(testOptions(host, port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Connect(ctx))

	require.NoError(t, w.Close(true))
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("wire did not report closed")
	}
}
