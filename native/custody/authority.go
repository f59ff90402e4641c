package custody

import (
	"promisevault/crypto"
)

// Authority is the party asserting control over a custody account. It is
// either the signer of the current transaction or a derived address whose
// seeds the caller can reproduce.
type Authority struct {
	Address crypto.Address
	derived bool
	program crypto.Address
	seeds   [][]byte
	bump    uint8
}

// SignerAuthority asserts the authority of a transaction signer. The service
// accepts it only when addr signed the transaction being executed.
func SignerAuthority(addr crypto.Address) Authority {
	return Authority{Address: addr}
}

// DerivedAuthority asserts control through program, seeds and bump. The
// address is computed eagerly; an invalid derivation yields the zero address
// and is rejected by the service.
func DerivedAuthority(program crypto.Address, seeds [][]byte, bump uint8) Authority {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	addr, err := crypto.CreateDerivedAddress(program, copied, bump)
	if err != nil {
		addr = crypto.Address{}
	}
	return Authority{Address: addr, derived: true, program: program, seeds: copied, bump: bump}
}

// IsDerived reports whether the authority is a derived address.
func (a Authority) IsDerived() bool { return a.derived }
