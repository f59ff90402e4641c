package safemath

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow  = errors.New("safemath: number overflow")
	ErrUnderflow = errors.New("safemath: number underflow")
)

func Add64(a, b uint64) (uint64, bool) {
	v, carry := bits.Add64(a, b, 0)
	return v, carry == 0
}

func Sub64(a, b uint64) (uint64, bool) {
	v, borrow := bits.Sub64(a, b, 0)
	return v, borrow == 0
}

// AddU64 is Add64 with an error result.
func AddU64(a, b uint64) (uint64, error) {
	v, ok := Add64(a, b)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}

// SubU64 is Sub64 with an error result.
func SubU64(a, b uint64) (uint64, error) {
	v, ok := Sub64(a, b)
	if !ok {
		return 0, ErrUnderflow
	}
	return v, nil
}

// Add returns a+b as a new value. Nil operands count as zero.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(orZero(a), orZero(b))
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b as a new value. Nil operands count as zero.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(orZero(a), orZero(b))
	if underflow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// Clone returns a copy of v, or zero when v is nil.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

var zero = new(uint256.Int)

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return zero
	}
	return v
}
