package crypto

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeedLength bounds each derivation seed.
	MaxSeedLength = 32
	// MaxSeeds bounds the number of seeds per derivation.
	MaxSeeds = 16
)

var derivedAuthorityMarker = []byte("DerivedAuthority")

var (
	// ErrOnCurve is returned when the derivation hash decodes as an ed25519
	// point. Such bumps are skipped by the canonical search.
	ErrOnCurve = errors.New("crypto: derived address is on curve")
	// ErrNoViableBump is returned when every bump from 255 to 0 lands on curve.
	ErrNoViableBump = errors.New("crypto: no viable bump seed")
	// ErrInvalidSeeds is returned for seed lists that exceed the bounds.
	ErrInvalidSeeds = errors.New("crypto: invalid seeds")
)

func derivationHash(program Address, seeds [][]byte, bump uint8) ([]byte, error) {
	if len(seeds) > MaxSeeds {
		return nil, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}
	parts := make([][]byte, 0, len(seeds)+3)
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return nil, fmt.Errorf("%w: seed %d is %d bytes", ErrInvalidSeeds, i, len(seed))
		}
		parts = append(parts, seed)
	}
	parts = append(parts, []byte{bump}, program[:], derivedAuthorityMarker)
	return Keccak256(parts...), nil
}

// CreateDerivedAddress computes the authority address for program, seeds
// and bump. Signing as the result would need a secp256k1 key whose keccak
// address matches it, a 2^160 preimage search.
func CreateDerivedAddress(program Address, seeds [][]byte, bump uint8) (Address, error) {
	h, err := derivationHash(program, seeds, bump)
	if err != nil {
		return Address{}, err
	}
	if _, err := new(edwards25519.Point).SetBytes(h); err == nil {
		return Address{}, ErrOnCurve
	}
	return MustBytesToAddress(h[len(h)-AddressLength:]), nil
}

// FindDerivedAddress searches bump values from 255 down to 0 and returns the
// first viable one, the canonical bump.
func FindDerivedAddress(program Address, seeds [][]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateDerivedAddress(program, seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// DeriveRecordAddress names a ledger record created by creator. The tag
// separates record kinds so the same seed never collides across them.
func DeriveRecordAddress(tag string, creator Address, seed []byte) Address {
	h := Keccak256([]byte(tag), creator[:], seed)
	return MustBytesToAddress(h[len(h)-AddressLength:])
}
