package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxUint64, 1); ok {
		t.Fatalf("expected overflow when adding to MaxUint64")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(32, 1600); !ok || p != 51200 {
		t.Fatalf("MulOverflowSafe(32,1600)=%d,%v", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxUint64); !ok || p != 0 {
		t.Fatalf("zero operand should not overflow")
	}
	if _, ok := MulOverflowSafe(math.MaxUint64/2, 3); ok {
		t.Fatalf("expected overflow")
	}
}

func TestEnd(t *testing.T) {
	end, err := End(0x10000, 0x100)
	if err != nil || end != 0x10100 {
		t.Fatalf("End=%#x,%v", end, err)
	}
	if _, err := End(math.MaxUint64-1, 2); err == nil {
		t.Fatalf("expected wrap error")
	}
}

func TestCheckArrayBounds(t *testing.T) {
	end, err := CheckArrayBounds(4096, 256, 16, 16)
	if err != nil || end != 512 {
		t.Fatalf("CheckArrayBounds=%d,%v want 512,nil", end, err)
	}
	if _, err := CheckArrayBounds(4096, 256, 16, 256); err == nil {
		t.Fatalf("expected bounds error")
	}
	if _, err := CheckArrayBounds(4096, 0, math.MaxUint64, 2); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestContainsAndOverlaps(t *testing.T) {
	if !Contains(0x1000, 0x100, 0x1000, 0x100) {
		t.Fatalf("whole range should be contained")
	}
	if Contains(0x1000, 0x100, 0x10F0, 0x20) {
		t.Fatalf("range past end should not be contained")
	}
	if Contains(0x1000, 0x100, 0xFF0, 0x10) {
		t.Fatalf("range before base should not be contained")
	}
	if !Overlaps(0, 16, 8, 16) {
		t.Fatalf("expected overlap")
	}
	if Overlaps(0, 16, 16, 16) {
		t.Fatalf("adjacent ranges do not overlap")
	}
	if Overlaps(0, 0, 0, 16) {
		t.Fatalf("empty range never overlaps")
	}
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, ok := Slice(data, 1, 3); !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if got, _ := Slice(data, 1, 3); cap(got) != 3 {
		t.Fatalf("Slice should cap the view, got cap %d", cap(got))
	}
	if _, ok := Slice(data, 4, 2); ok {
		t.Fatalf("Slice should fail when extending beyond len")
	}
	if Has(data, 2, 4) {
		t.Fatalf("Has should be false for out-of-bounds range")
	}
	if !Has(data, 2, 1) {
		t.Fatalf("Has should be true for valid range")
	}
	if _, ok := Slice(data, 6, 0); ok {
		t.Fatalf("Slice should reject offset past len")
	}
}
