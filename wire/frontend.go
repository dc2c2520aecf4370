package wire

import "sort"

// Startup encodes a StartupMessage: untyped, protocol version followed by
// name/value parameter pairs, terminated by a single NUL byte. Parameters
// are emitted in sorted key order so encoding is deterministic (useful for
// tests and for round-trip comparisons).
func Startup(params map[string]string) []byte {
	b := NewBuilder()
	b.Reset(0)
	b.Int32(ProtocolVersion)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.CString(k)
		b.CString(params[k])
	}
	b.buf = append(b.buf, 0)
	return b.Finish()
}

// CancelRequest encodes an out-of-band CancelRequest: untyped, the special
// code, then the backend process ID and secret key from BackendKeyData.
func CancelRequest(processID, secretKey int32) []byte {
	b := NewBuilder()
	b.Reset(0)
	b.Int32(CancelRequestCode)
	b.Int32(processID)
	b.Int32(secretKey)
	return b.Finish()
}

// PasswordMessage encodes a cleartext (or pre-hashed) password response.
func PasswordMessage(password string) []byte {
	b := NewBuilder()
	b.Reset(TagPasswordMessage)
	b.CString(password)
	return b.Finish()
}

// SASLInitialResponse encodes the client's first SASL message.
func SASLInitialResponse(mechanism string, data []byte) []byte {
	b := NewBuilder()
	b.Reset(TagSASLInitialResp)
	b.CString(mechanism)
	b.BytesLP(data)
	return b.Finish()
}

// SASLResponse encodes a subsequent SASL message (raw bytes, no mechanism).
func SASLResponse(data []byte) []byte {
	b := NewBuilder()
	b.Reset(TagSASLResponse)
	b.Bytes(data)
	return b.Finish()
}

// Query encodes a simple-query message.
func Query(sql string) []byte {
	b := NewBuilder()
	b.Reset(TagQuery)
	b.CString(sql)
	return b.Finish()
}

// Parse encodes a Parse message: named statement, query text, and an
// explicit parameter type OID list (empty means "let the server infer").
func Parse(statement, query string, paramTypes []int32) []byte {
	b := NewBuilder()
	b.Reset(TagParse)
	b.CString(statement)
	b.CString(query)
	b.OIDArray(paramTypes)
	return b.Finish()
}

// Bind encodes a Bind message. All formats are text (0), matching this
// client's text-only wire format per spec.
func Bind(portal, statement string, params []*string) []byte {
	b := NewBuilder()
	b.Reset(TagBind)
	b.CString(portal)
	b.CString(statement)
	b.Array(0, func(int) {}) // param_formats: empty = all text
	b.Array(len(params), func(i int) {
		if params[i] == nil {
			b.BytesLP(nil)
		} else {
			b.BytesLP([]byte(*params[i]))
		}
	})
	b.Array(0, func(int) {}) // column_formats: empty = all text
	return b.Finish()
}

// Describe encodes a Describe message for a statement or a portal.
func Describe(which byte, name string) []byte {
	b := NewBuilder()
	b.Reset(TagDescribe)
	b.Byte(which)
	b.CString(name)
	return b.Finish()
}

// Execute encodes an Execute message; rowLimit of 0 means "no limit".
func Execute(portal string, rowLimit int32) []byte {
	b := NewBuilder()
	b.Reset(TagExecute)
	b.CString(portal)
	b.Int32(rowLimit)
	return b.Finish()
}

// Close encodes a Close message for a statement or a portal.
func Close(which byte, name string) []byte {
	b := NewBuilder()
	b.Reset(TagClose)
	b.Byte(which)
	b.CString(name)
	return b.Finish()
}

// Sync encodes a Sync message (no body).
func Sync() []byte {
	b := NewBuilder()
	b.Reset(TagSync)
	return b.Finish()
}

// Flush encodes a Flush message (no body).
func Flush() []byte {
	b := NewBuilder()
	b.Reset(TagFlush)
	return b.Finish()
}

// CopyData encodes one chunk of a COPY IN byte stream.
func CopyData(chunk []byte) []byte {
	b := NewBuilder()
	b.Reset(TagCopyData)
	b.Bytes(chunk)
	return b.Finish()
}

// CopyDone encodes the end of a clean COPY IN stream.
func CopyDone() []byte {
	b := NewBuilder()
	b.Reset(TagCopyDone)
	return b.Finish()
}

// CopyFail encodes an aborted COPY IN stream with a human-readable cause.
func CopyFail(cause string) []byte {
	b := NewBuilder()
	b.Reset(TagCopyFail)
	b.CString(cause)
	return b.Finish()
}

// Terminate encodes a graceful connection close.
func Terminate() []byte {
	b := NewBuilder()
	b.Reset(TagTerminate)
	return b.Finish()
}
