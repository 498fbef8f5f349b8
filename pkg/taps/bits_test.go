package taps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBoolsToBytesRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, false, true, true, false, true}
	packed := BoolsToBytes(bits)
	if diff := cmp.Diff([]byte{0x8D, 0x05}, packed); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(bits, BytesToBools(packed, len(bits))); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBoolsToBytesEmpty(t *testing.T) {
	if got := BoolsToBytes(nil); got != nil {
		t.Fatalf("BoolsToBytes(nil) = %v, want nil", got)
	}
}

func TestBitsToUint32(t *testing.T) {
	bits := Uint32ToBits(0x4BA00477, 32)
	if got := BitsToUint32(bits); got != 0x4BA00477 {
		t.Fatalf("round trip = %#x, want 0x4BA00477", got)
	}

	// A short slice covers only the low bits.
	if got := BitsToUint32([]bool{true, true, false, true}); got != 0xB {
		t.Fatalf("partial word = %#x, want 0xB", got)
	}
}

func TestUint32ToBitsWidth(t *testing.T) {
	bits := Uint32ToBits(0xFF, 4)
	if diff := cmp.Diff([]bool{true, true, true, true}, bits); diff != "" {
		t.Fatalf("narrow expansion mismatch (-want +got):\n%s", diff)
	}
	if got := len(Uint32ToBits(1, 35)); got != 35 {
		t.Fatalf("wide expansion length = %d, want 35", got)
	}
}
