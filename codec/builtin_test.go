package codec

import "testing"

func TestIntCodecFormatRange(t *testing.T) {
	tests := []struct {
		name    string
		v       any
		bits    int
		want    string
		wantErr bool
	}{
		{"hex string in range", "0x100", 16, "256", false},
		{"plain int in range", 777, 32, "777", false},
		{"int2 out of range", 100000, 16, "", true},
		{"int8 large", int64(1234), 64, "1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := intCodec{bits: tt.bits}
			got, err := c.Format(tt.v)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIntCodecParse(t *testing.T) {
	c := intCodec{bits: 16}
	v, err := c.Parse("256")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.(int64) != 256 {
		t.Fatalf("got %v", v)
	}
}

func TestBoolCodec(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"t", true}, {"true", true}, {"yes", true}, {"y", true}, {"1", true},
		{"f", false}, {"false", false}, {"no", false}, {"n", false}, {"0", false},
	}
	for _, tt := range tests {
		v, err := boolCodec{}.Parse(tt.text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.text, err)
		}
		if v.(bool) != tt.want {
			t.Fatalf("Parse(%q) = %v, want %v", tt.text, v, tt.want)
		}
	}

	s, err := boolCodec{}.Format(true)
	if err != nil || s != "true" {
		t.Fatalf("Format(true) = (%q, %v)", s, err)
	}
	s, err = boolCodec{}.Format(false)
	if err != nil || s != "false" {
		t.Fatalf("Format(false) = (%q, %v)", s, err)
	}
}

func TestByteaCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want []byte
	}{
		{"string bytes", "hello, world", []byte("hello, world")},
		{"int slice", []int{1, 2, 3, 4, 5}, []byte{1, 2, 3, 4, 5}},
		{"any slice", []any{5, 4, 3, 2, 1}, []byte{5, 4, 3, 2, 1}},
	}
	c := byteaCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted, err := c.Format(tt.v)
			if err != nil {
				t.Fatalf("Format: %v", err)
			}
			parsed, err := c.Parse(formatted)
			if err != nil {
				t.Fatalf("Parse(%q): %v", formatted, err)
			}
			got := parsed.([]byte)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestByteaOutOfRange(t *testing.T) {
	_, err := byteaCodec{}.Format([]int{1, 300, 3})
	if err == nil {
		t.Fatal("expected error for out-of-range byte value")
	}
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry()
	c := r.Lookup(999999)
	if c == nil {
		t.Fatal("Lookup must never return nil")
	}
	v, err := c.Parse("hello")
	if err != nil || v != "hello" {
		t.Fatalf("expected identity text fallback, got (%v, %v)", v, err)
	}
}

func TestRegistryParseNull(t *testing.T) {
	r := NewRegistry()
	v, err := r.Parse(OIDInt4, nil, true)
	if err != nil || v != nil {
		t.Fatalf("expected (nil, nil) for NULL, got (%v, %v)", v, err)
	}
}

func TestRegistryFormatNil(t *testing.T) {
	r := NewRegistry()
	s, err := r.Format(OIDInt4, nil)
	if err != nil || s != nil {
		t.Fatalf("expected (nil, nil) for nil value, got (%v, %v)", s, err)
	}
}
