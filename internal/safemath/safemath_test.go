package safemath

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
)

func TestAdd64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		ok   bool
	}{
		{"zero plus zero", 0, 0, 0, true},
		{"small", 1, 2, 3, true},
		{"at boundary", math.MaxUint64 - 1, 1, math.MaxUint64, true},
		{"overflow", math.MaxUint64, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add64(tt.a, tt.b)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Fatalf("Add64(%d, %d) = %d, %v; want %d, %v", tt.a, tt.b, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSubU64(t *testing.T) {
	if v, err := SubU64(5, 3); err != nil || v != 2 {
		t.Fatalf("SubU64(5, 3) = %d, %v", v, err)
	}
	if _, err := SubU64(3, 5); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
	if _, err := AddU64(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestUint256Checked(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	if _, err := Add(max, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
	sum, err := Add(nil, uint256.NewInt(7))
	if err != nil || sum.Uint64() != 7 {
		t.Fatalf("Add(nil, 7) = %v, %v", sum, err)
	}
	a := uint256.NewInt(10)
	diff, err := Sub(a, uint256.NewInt(4))
	if err != nil || diff.Uint64() != 6 {
		t.Fatalf("Sub(10, 4) = %v, %v", diff, err)
	}
	if a.Uint64() != 10 {
		t.Fatalf("operands must not be mutated")
	}
}
