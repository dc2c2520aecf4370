package wire

import (
	"bytes"
	"testing"
)

func TestBuilderCursorRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Reset(TagParse)
	b.CString("stmt1")
	b.CString("SELECT 1")
	b.OIDArray([]int32{23, 25})
	msg := b.Finish()

	if msg[0] != TagParse {
		t.Fatalf("expected type byte %q, got %q", TagParse, msg[0])
	}

	c := NewCursor(msg[5:])
	stmt, err := c.CString()
	if err != nil || stmt != "stmt1" {
		t.Fatalf("statement: got (%q, %v)", stmt, err)
	}
	query, err := c.CString()
	if err != nil || query != "SELECT 1" {
		t.Fatalf("query: got (%q, %v)", query, err)
	}
	oids, err := c.OIDArray()
	if err != nil {
		t.Fatalf("OIDArray: %v", err)
	}
	if len(oids) != 2 || oids[0] != 23 || oids[1] != 25 {
		t.Fatalf("oids: got %v", oids)
	}
}

// TestParseParamCountIsInt16 pins the wire shape spec §4.1 requires for
// Parse's param_types list ("array(i16, i32)"): a 2-byte element count,
// not 4. A real server reads this count as int16 and would otherwise
// desync on the two OID bytes this test's byte offsets check for.
func TestParseParamCountIsInt16(t *testing.T) {
	msg := Parse("stmt1", "SELECT $1", []int32{23})

	// header(5) + "stmt1\0"(6) + "SELECT $1\0"(10) = 21, then the
	// param_types count starts.
	countOff := 5 + len("stmt1\x00") + len("SELECT $1\x00")
	count := int16(msg[countOff])<<8 | int16(msg[countOff+1])
	if count != 1 {
		t.Fatalf("param_types count = %d, want 1 (int16-encoded)", count)
	}
	// exactly 2 (count) + 4 (one OID) bytes should follow, to the end.
	if len(msg)-(countOff+2) != 4 {
		t.Fatalf("expected 4 trailing OID bytes, got %d", len(msg)-(countOff+2))
	}

	c := NewCursor(msg[5:])
	if _, err := c.CString(); err != nil {
		t.Fatalf("statement: %v", err)
	}
	if _, err := c.CString(); err != nil {
		t.Fatalf("query: %v", err)
	}
	oids, err := c.OIDArray()
	if err != nil {
		t.Fatalf("OIDArray: %v", err)
	}
	if len(oids) != 1 || oids[0] != 23 {
		t.Fatalf("oids: got %v", oids)
	}
}

func TestDecodeParameterDescription(t *testing.T) {
	// A real ParameterDescription body for one int4 parameter:
	// int16 count=1, int32 OID=23.
	body := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x17}
	pd, err := DecodeParameterDescription(body)
	if err != nil {
		t.Fatalf("DecodeParameterDescription: %v", err)
	}
	if len(pd.OIDs) != 1 || pd.OIDs[0] != 23 {
		t.Fatalf("OIDs = %v, want [23]", pd.OIDs)
	}
}

func TestDecodeParameterDescriptionZeroParams(t *testing.T) {
	// A zero-parameter statement still sends a 2-byte body: int16 count=0.
	pd, err := DecodeParameterDescription([]byte{0x00, 0x00})
	if err != nil {
		t.Fatalf("DecodeParameterDescription: %v", err)
	}
	if len(pd.OIDs) != 0 {
		t.Fatalf("OIDs = %v, want empty", pd.OIDs)
	}
}

func TestBuilderUntypedLength(t *testing.T) {
	b := NewBuilder()
	b.Reset(0)
	b.Int32(ProtocolVersion)
	b.CString("user")
	b.CString("alice")
	b.Byte(0)
	msg := b.Finish()

	length := int32(msg[0])<<24 | int32(msg[1])<<16 | int32(msg[2])<<8 | int32(msg[3])
	if int(length) != len(msg) {
		t.Fatalf("length prefix %d does not match message size %d", length, len(msg))
	}
}

func TestBytesLPNull(t *testing.T) {
	b := NewBuilder()
	b.Reset(TagBind)
	b.BytesLP(nil)
	b.BytesLP([]byte("hi"))
	msg := b.Finish()

	c := NewCursor(msg[5:])
	v, err := c.BytesLP()
	if err != nil || v != nil {
		t.Fatalf("expected nil value for NULL column, got (%v, %v)", v, err)
	}
	v, err = c.BytesLP()
	if err != nil || !bytes.Equal(v, []byte("hi")) {
		t.Fatalf("expected \"hi\", got (%v, %v)", v, err)
	}
}

func TestFrameReaderReadTyped(t *testing.T) {
	b := NewBuilder()
	b.Reset(TagReadyForQuery)
	b.Byte(TxIdle)
	msg := b.Finish()

	fr := NewFrameReader(bytes.NewReader(msg))
	typ, body, err := fr.ReadTyped()
	if err != nil {
		t.Fatalf("ReadTyped: %v", err)
	}
	if typ != TagReadyForQuery {
		t.Fatalf("expected type %q, got %q", TagReadyForQuery, typ)
	}
	rfq, err := DecodeReadyForQuery(body)
	if err != nil {
		t.Fatalf("DecodeReadyForQuery: %v", err)
	}
	if rfq.TxStatus != TxIdle {
		t.Fatalf("expected TxIdle, got %q", rfq.TxStatus)
	}
}

func TestDecodeRowDescriptionAndDataRow(t *testing.T) {
	b := NewBuilder()
	b.Reset(TagRowDescription)
	b.Array(1, func(int) {
		b.CString("id")
		b.Int32(0)
		b.Int16(0)
		b.Int32(23) // int4 OID
		b.Int16(4)
		b.Int32(-1)
		b.Int16(0)
	})
	rdMsg := b.Finish()

	rd, err := DecodeRowDescription(rdMsg[5:])
	if err != nil {
		t.Fatalf("DecodeRowDescription: %v", err)
	}
	if len(rd.Columns) != 1 || rd.Columns[0].Name != "id" {
		t.Fatalf("unexpected columns: %+v", rd.Columns)
	}

	b.Reset(TagDataRow)
	b.Array(1, func(int) { b.BytesLP([]byte("42")) })
	drMsg := b.Finish()

	dr, err := DecodeDataRow(drMsg[5:])
	if err != nil {
		t.Fatalf("DecodeDataRow: %v", err)
	}
	if len(dr.Values) != 1 || string(dr.Values[0]) != "42" {
		t.Fatalf("unexpected values: %v", dr.Values)
	}
}
