package inbox

import "testing"

func TestFingerprintStableAndDistinct(t *testing.T) {
	// Arrange
	a := Fingerprint("order.placed", "order-1")
	b := Fingerprint("order.placed", "order-1")
	c := Fingerprint("order.placed", "order-2")
	d := Fingerprint("order.cancelled", "order-1")

	// Act & Assert
	if a != b {
		t.Fatalf("expected identical inputs to hash identically")
	}
	if a == c {
		t.Fatalf("expected different dedup values to hash differently")
	}
	if a == d {
		t.Fatalf("expected different type names to hash differently")
	}
}

func TestFingerprintHandlesLongInputsBeyondScratch(t *testing.T) {
	// Arrange
	long := make([]byte, maxScratch+100)
	for i := range long {
		long[i] = 'x'
	}

	// Act
	got := Fingerprint("type", string(long))

	// Assert
	if got == 0 {
		t.Fatalf("expected a non-zero hash for long input")
	}
}
