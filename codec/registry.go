// Package codec maps PostgreSQL type OIDs to text-format encode/decode
// pairs. Every value that crosses the wire in this client is text format
// (spec Non-goal: binary format); a Codec's job is purely string<->host
// value conversion, with unknown OIDs falling back to the identity text
// codec per spec §4.3 ("Codec fallback... never throw from lookup").
package codec

import "pglue/errs"

// Well-known built-in type OIDs, from PostgreSQL's pg_type catalog.
const (
	OIDBool        int32 = 16
	OIDBytea       int32 = 17
	OIDInt8        int32 = 20
	OIDInt2        int32 = 21
	OIDInt4        int32 = 23
	OIDText        int32 = 25
	OIDJSON        int32 = 114
	OIDFloat4      int32 = 700
	OIDFloat8      int32 = 701
	OIDTimestamptz int32 = 1184
	OIDVarchar     int32 = 1043
	OIDJSONB       int32 = 3802
)

// Codec converts one PostgreSQL type between its text wire representation
// and a host-language value.
type Codec interface {
	// Parse decodes UTF-8 wire text into a host value.
	Parse(text string) (any, error)
	// Format encodes a host value as wire text. An error return means the
	// value is out of range or the wrong shape for this type; Registry.Format
	// wraps it in a TypeError.
	Format(v any) (string, error)
}

// Registry maps type OID to Codec, with a text fallback for anything it
// doesn't recognize.
type Registry struct {
	codecs map[int32]Codec
	text   Codec
}

// NewRegistry builds a Registry pre-populated with the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[int32]Codec), text: textCodec{}}
	r.Register(OIDBool, boolCodec{})
	r.Register(OIDBytea, byteaCodec{})
	r.Register(OIDInt8, intCodec{bits: 64})
	r.Register(OIDInt2, intCodec{bits: 16})
	r.Register(OIDInt4, intCodec{bits: 32})
	r.Register(OIDText, textCodec{})
	r.Register(OIDVarchar, textCodec{})
	r.Register(OIDJSON, jsonCodec{})
	r.Register(OIDJSONB, jsonCodec{})
	r.Register(OIDFloat4, floatCodec{bits: 32})
	r.Register(OIDFloat8, floatCodec{bits: 64})
	r.Register(OIDTimestamptz, timestamptzCodec{})
	return r
}

// Register installs or replaces the codec for oid, letting callers extend
// or override the registry (e.g. for enum or domain types).
func (r *Registry) Register(oid int32, c Codec) {
	r.codecs[oid] = c
}

// Lookup returns the codec for oid, or the text fallback if oid is 0 or
// unregistered. Never returns nil.
func (r *Registry) Lookup(oid int32) Codec {
	if c, ok := r.codecs[oid]; ok {
		return c
	}
	return r.text
}

// Parse is a convenience that looks up oid and parses text, returning nil
// for a SQL NULL (isNull true).
func (r *Registry) Parse(oid int32, text []byte, isNull bool) (any, error) {
	if isNull {
		return nil, nil
	}
	v, err := r.Lookup(oid).Parse(string(text))
	if err != nil {
		return nil, errs.NewType("column oid %d: %v", oid, err)
	}
	return v, nil
}

// Format is a convenience that looks up oid and formats v, returning
// (nil, nil) for a nil/undefined host value (encodes as SQL NULL).
func (r *Registry) Format(oid int32, v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := r.Lookup(oid).Format(v)
	if err != nil {
		return nil, errs.NewType("param oid %d: %v", oid, err)
	}
	return &s, nil
}
