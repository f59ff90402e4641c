package treasury

import (
	"fmt"

	"promisevault/crypto"
)

// AuthoritySeed is the domain tag mixed into every treasury authority.
var AuthoritySeed = []byte("treasury")

func authoritySeeds(treasuryID crypto.Address) [][]byte {
	return [][]byte{AuthoritySeed, treasuryID.Bytes()}
}

// DeriveAuthority returns the canonical keyless authority of treasuryID and
// its bump.
func DeriveAuthority(program, treasuryID crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindDerivedAddress(program, authoritySeeds(treasuryID))
}

// VerifyAuthority recomputes the canonical derivation and checks the claimed
// bump against it. Any other bump is refused even when it derives to a valid
// address.
func VerifyAuthority(program, treasuryID crypto.Address, claimedBump uint8) (crypto.Address, error) {
	authority, bump, err := DeriveAuthority(program, treasuryID)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrInvalidAuthorityDerivation, err)
	}
	if bump != claimedBump {
		return crypto.Address{}, fmt.Errorf("%w: bump %d is not canonical", ErrInvalidAuthorityDerivation, claimedBump)
	}
	return authority, nil
}
