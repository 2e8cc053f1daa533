package utf8stream

import (
	"reflect"
	"testing"
)

func TestDecodeASCII(t *testing.T) {
	points, out := Decode([]byte("hi"), Partial{})
	want := []int32{'h', 'i', 0}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Decode() points = %v, want %v", points, want)
	}
	if out != (Partial{}) {
		t.Errorf("Decode() out = %+v, want zero value", out)
	}
}

func TestDecodeMultiByteWhole(t *testing.T) {
	// "é" is 0xC3 0xA9, code point U+00E9.
	points, out := Decode([]byte{0xC3, 0xA9}, Partial{})
	want := []int32{0xE9, 0}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Decode() points = %v, want %v", points, want)
	}
	if out != (Partial{}) {
		t.Errorf("Decode() out = %+v, want zero value", out)
	}
}

func TestDecodeSplitAcrossCalls(t *testing.T) {
	points1, mid := Decode([]byte{0xC3}, Partial{})
	if len(points1) != 1 || points1[0] != 0 {
		t.Fatalf("first Decode() points = %v, want just the sentinel", points1)
	}
	if mid.Remaining != 1 {
		t.Fatalf("first Decode() out.Remaining = %d, want 1", mid.Remaining)
	}

	points2, out := Decode([]byte{0xA9}, mid)
	want := []int32{0xE9, 0}
	if !reflect.DeepEqual(points2, want) {
		t.Errorf("second Decode() points = %v, want %v", points2, want)
	}
	if out != (Partial{}) {
		t.Errorf("second Decode() out = %+v, want zero value", out)
	}
}

func TestDecodeInvalidLeadByteClearsBatch(t *testing.T) {
	// "a" decodes cleanly, then an invalid lead byte 0xFF must wipe it
	// from this call's output, leaving only the sentinel.
	points, out := Decode([]byte{'a', 0xFF}, Partial{})
	want := []int32{0}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Decode() points = %v, want %v", points, want)
	}
	if out.Remaining >= 0 {
		t.Errorf("Decode() out.Remaining = %d, want negative", out.Remaining)
	}
}

func TestDecodeResumeInvalidContinuation(t *testing.T) {
	// Once a sequence is in progress (Remaining > 0), a resumed byte that
	// isn't a continuation byte (10xxxxxx) aborts it.
	_, mid := Decode([]byte{0xC3}, Partial{})
	points, out := Decode([]byte{'x'}, mid)
	want := []int32{0}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Decode() points = %v, want %v", points, want)
	}
	if out.Remaining >= 0 {
		t.Errorf("Decode() out.Remaining = %d, want negative", out.Remaining)
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	points, out := Decode(nil, Partial{})
	want := []int32{0}
	if !reflect.DeepEqual(points, want) {
		t.Errorf("Decode() points = %v, want %v", points, want)
	}
	if out != (Partial{}) {
		t.Errorf("Decode() out = %+v, want zero value", out)
	}
}
