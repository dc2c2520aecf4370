package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// textCodec is both the OID 25/1043 codec and the identity fallback for
// unrecognized OIDs: parse and format never fail.
type textCodec struct{}

func (textCodec) Parse(text string) (any, error) { return text, nil }

func (textCodec) Format(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// boolCodec implements PostgreSQL's permissive boolean text format:
// t/f/true/false/yes/no/y/n/1/0 (case-insensitive) on parse; canonical
// "true"/"false" on format.
type boolCodec struct{}

func (boolCodec) Parse(text string) (any, error) {
	switch strings.ToLower(text) {
	case "t", "true", "yes", "y", "on", "1":
		return true, nil
	case "f", "false", "no", "n", "off", "0":
		return false, nil
	default:
		return nil, fmt.Errorf("invalid boolean text %q", text)
	}
}

func (boolCodec) Format(v any) (string, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case string:
		switch strings.ToLower(t) {
		case "t", "true", "yes", "y", "on", "1":
			return "true", nil
		case "f", "false", "no", "n", "off", "0":
			return "false", nil
		}
		return "", fmt.Errorf("invalid boolean value %q", t)
	default:
		return "", fmt.Errorf("cannot format %T as boolean", v)
	}
}

// intCodec implements int2/int4/int8. bits bounds both parse and format so
// e.g. formatting 100000 for an int2 parameter is a TypeError, matching
// spec scenario 1 ("SELECT ${100000}::int2 -> type error").
type intCodec struct{ bits int }

func (c intCodec) Parse(text string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, c.bits)
	if err != nil {
		return nil, fmt.Errorf("invalid int%d text %q: %w", c.bits/8, text, err)
	}
	return n, nil
}

func (c intCodec) Format(v any) (string, error) {
	n, err := toInt64(v)
	if err != nil {
		return "", err
	}
	lo, hi := rangeFor(c.bits)
	if n < lo || n > hi {
		return "", fmt.Errorf("value %d out of range for int%d", n, c.bits/8)
	}
	return strconv.FormatInt(n, 10), nil
}

func rangeFor(bits int) (lo, hi int64) {
	switch bits {
	case 16:
		return -1 << 15, 1<<15 - 1
	case 32:
		return -1 << 31, 1<<31 - 1
	default:
		return -1 << 63, 1<<63 - 1
	}
}

// toInt64 coerces common Go numeric and string representations to int64,
// covering both native ints and the "0x100"-style strings a fragment
// template's ${...} placeholder might carry verbatim.
func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return n, nil
		}
		return 0, fmt.Errorf("cannot parse %q as integer", t)
	default:
		return 0, fmt.Errorf("cannot format %T as integer", v)
	}
}

// floatCodec implements float4/float8.
type floatCodec struct{ bits int }

func (c floatCodec) Parse(text string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), c.bits)
	if err != nil {
		return nil, fmt.Errorf("invalid float text %q: %w", text, err)
	}
	return f, nil
}

func (c floatCodec) Format(v any) (string, error) {
	switch t := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, c.bits), nil
	case int:
		return strconv.Itoa(t), nil
	case string:
		if _, err := strconv.ParseFloat(t, c.bits); err != nil {
			return "", fmt.Errorf("cannot format %q as float: %w", t, err)
		}
		return t, nil
	default:
		return "", fmt.Errorf("cannot format %T as float", v)
	}
}

// byteaCodec implements PostgreSQL's hex bytea text format
// (bytea_output=hex, this client's forced startup setting): "\x" followed
// by lowercase hex digit pairs.
type byteaCodec struct{}

func (byteaCodec) Parse(text string) (any, error) {
	if !strings.HasPrefix(text, "\\x") {
		return nil, fmt.Errorf("unsupported bytea text format (expected hex): %q", text)
	}
	b, err := hex.DecodeString(text[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid bytea hex %q: %w", text, err)
	}
	return b, nil
}

func (byteaCodec) Format(v any) (string, error) {
	b, err := toBytes(v)
	if err != nil {
		return "", err
	}
	return "\\x" + hex.EncodeToString(b), nil
}

// toBytes accepts []byte, a plain string (its raw bytes, not base64-decoded
// — a string that happens to look like base64 is still literal text), or a
// slice of numbers (covering the spec's Uint8Array/array-of-numbers
// scenario for ${[1,2,3]}::bytea).
func toBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case []int:
		out := make([]byte, len(t))
		for i, n := range t {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("byte value %d out of range", n)
			}
			out[i] = byte(n)
		}
		return out, nil
	case []any:
		out := make([]byte, len(t))
		for i, e := range t {
			n, err := toInt64(e)
			if err != nil || n < 0 || n > 255 {
				return nil, fmt.Errorf("byte value %v out of range", e)
			}
			out[i] = byte(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot format %T as bytea", v)
	}
}

// timestamptzCodec parses/formats PostgreSQL's ISO DateStyle output
// (forced by this client's startup parameters), e.g.
// "2024-01-02 15:04:05.999999-07".
type timestamptzCodec struct{}

const pgTimestamptzLayout = "2006-01-02 15:04:05.999999-07"

func (timestamptzCodec) Parse(text string) (any, error) {
	t, err := time.Parse(pgTimestamptzLayout, text)
	if err != nil {
		// Postgres omits the fractional seconds field entirely when zero.
		if t2, err2 := time.Parse("2006-01-02 15:04:05-07", text); err2 == nil {
			return t2, nil
		}
		return nil, fmt.Errorf("invalid timestamptz text %q: %w", text, err)
	}
	return t, nil
}

func (timestamptzCodec) Format(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("cannot format %T as timestamptz", v)
	}
	return t.UTC().Format(pgTimestamptzLayout), nil
}

// jsonCodec implements json/jsonb: Parse leaves the text as raw
// json.RawMessage (the caller unmarshals into whatever shape it wants);
// Format marshals any Go value.
type jsonCodec struct{}

func (jsonCodec) Parse(text string) (any, error) {
	return json.RawMessage(text), nil
}

func (jsonCodec) Format(v any) (string, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cannot format %T as json: %w", v, err)
	}
	return string(b), nil
}
