package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Header is the {type, length} pair that frames every typed backend
// message. Length includes itself but excludes the leading type byte, so a
// message's total on-wire size is Length+1.
type Header struct {
	Type   byte
	Length int32
}

// FrameReader reads length-prefixed protocol messages off a byte stream,
// generalizing the teacher's pgwire.Reader to also frame the untyped
// startup/negotiation messages a client (not just a server) must read.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for message-at-a-time reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 32*1024)}
}

// ReadTyped reads one {type:i8, length:i32, body} message and returns the
// type byte and body (length-4 bytes). Used for every backend message
// except the handful of untyped ones read during negotiation.
func (f *FrameReader) ReadTyped() (byte, []byte, error) {
	typ, err := f.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var length int32
	if err := binary.Read(f.r, binary.BigEndian, &length); err != nil {
		return 0, nil, fmt.Errorf("wire: read length for '%c': %w", typ, err)
	}
	if length < 4 {
		return 0, nil, fmt.Errorf("wire: message '%c' has bogus length %d", typ, length)
	}
	body := make([]byte, length-4)
	if len(body) > 0 {
		if _, err := io.ReadFull(f.r, body); err != nil {
			return 0, nil, fmt.Errorf("wire: read body for '%c': %w", typ, err)
		}
	}
	return typ, body, nil
}

// ReadUntyped reads an untyped {length:i32, body} message: the shape of
// StartupMessage and CancelRequest, the only messages this protocol sends
// without a leading type byte. The client itself never receives one (every
// backend reply is typed); this exists as the read-side mirror of
// Builder's untyped mode, exercised by the engine and pool packages'
// fake-server test harnesses reading back the client's Startup packet.
func (f *FrameReader) ReadUntyped() ([]byte, error) {
	var length int32
	if err := binary.Read(f.r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("wire: read untyped length: %w", err)
	}
	if length < 4 {
		return nil, fmt.Errorf("wire: untyped message has bogus length %d", length)
	}
	body := make([]byte, length-4)
	if len(body) > 0 {
		if _, err := io.ReadFull(f.r, body); err != nil {
			return nil, fmt.Errorf("wire: read untyped body: %w", err)
		}
	}
	return body, nil
}
