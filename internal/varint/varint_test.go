package varint

import (
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	values := []uint32{
		0, 1, 0x7f, 0x80, 0x81, 0x3fff, 0x4000,
		0x1fffff, 0x200000, 0xfffffff, 0x10000000, math.MaxUint32,
	}

	for _, v := range values {
		buf := AppendUint32(nil, v)
		if len(buf) > MaxLen32 {
			t.Fatalf("value %d encoded to %d bytes", v, len(buf))
		}
		got, n := Uint32(buf)
		if n != len(buf) {
			t.Fatalf("value %d: decoded %d of %d bytes", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("value %d: decoded %d", v, got)
		}
	}
}

func TestTruncated(t *testing.T) {
	buf := AppendUint32(nil, math.MaxUint32)
	for i := 0; i < len(buf); i++ {
		if _, n := Uint32(buf[:i]); n != 0 {
			t.Fatalf("truncated input of %d bytes decoded with n=%d", i, n)
		}
	}
}

func TestOverflow(t *testing.T) {
	// Five continuation bytes (a six-byte encoding) can never be a valid
	// uint32.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, n := Uint32(buf); n != 0 {
		t.Fatalf("overflowing input decoded with n=%d", n)
	}
}

func TestAppendPreservesPrefix(t *testing.T) {
	buf := []byte{0xde, 0xad}
	buf = AppendUint32(buf, 300)
	if buf[0] != 0xde || buf[1] != 0xad {
		t.Fatal("prefix clobbered")
	}
	got, n := Uint32(buf[2:])
	if n == 0 || got != 300 {
		t.Fatalf("got %d (n=%d)", got, n)
	}
}
