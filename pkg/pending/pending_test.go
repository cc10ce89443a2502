package pending

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	counters := Counters{0, 1, 42, 1 << 40}
	raw := Encode(counters)
	if len(raw) != len(counters)*counterSize {
		t.Fatalf("unexpected encoded length: got %d, want %d", len(raw), len(counters)*counterSize)
	}

	got, err := Decode(raw, len(counters))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	for i := range counters {
		if got[i] != counters[i] {
			t.Errorf("counter %d: got %d, want %d", i, got[i], counters[i])
		}
	}
}

func TestEncodeIsBigEndian(t *testing.T) {
	raw := Encode(Counters{1})
	want := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(raw, want) {
		t.Errorf("Encode(1) = % x, want % x (big-endian)", raw, want)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, 3)
	if err == nil {
		t.Fatal("expected an error for a truncated attribute")
	}
}

func TestZeroRowIsZero(t *testing.T) {
	row := ZeroRow(5)
	if len(row) != 5 {
		t.Fatalf("ZeroRow(5) has length %d", len(row))
	}
	if !row.IsZero() {
		t.Error("ZeroRow should be all zero")
	}
}

func TestIsZero(t *testing.T) {
	if (Counters{0, 0, 1}).IsZero() {
		t.Error("row with a nonzero counter reported IsZero")
	}
	if !(Counters{0, 0, 0}).IsZero() {
		t.Error("all-zero row reported not IsZero")
	}
}
