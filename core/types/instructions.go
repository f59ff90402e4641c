package types

import (
	"github.com/holiman/uint256"

	"promisevault/crypto"
)

// NativeTransferPayload moves native deposit currency from the signer.
type NativeTransferPayload struct {
	To     crypto.Address
	Amount uint64
}

// InitAccountPayload creates a custody account whose ID is derived from the
// signer and Seed.
type InitAccountPayload struct {
	Seed  []byte
	Mint  string
	Owner crypto.Address
}

// MintToPayload credits new supply; the signer must be the mint authority.
type MintToPayload struct {
	Mint    string
	Account crypto.Address
	Amount  *uint256.Int
}

// CustodyTransferPayload moves tokens out of From, authorised by the signer.
type CustodyTransferPayload struct {
	From   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
}

type ApprovePayload struct {
	Account  crypto.Address
	Delegate crypto.Address
	Amount   *uint256.Int
}

type RevokePayload struct {
	Account crypto.Address
}

// SetCloseAuthorityPayload installs Authority as the close authority. The
// zero address clears it.
type SetCloseAuthorityPayload struct {
	Account   crypto.Address
	Authority crypto.Address
}

type CloseAccountPayload struct {
	Account     crypto.Address
	Destination crypto.Address
}

// TreasuryOpenPayload opens a treasury whose ID is derived from the signer and
// Seed. Times are unix seconds; EndTime zero disables the closure gate.
type TreasuryOpenPayload struct {
	Seed          []byte
	Admin         crypto.Address
	Custody       crypto.Address
	RentCollector crypto.Address
	Mode          uint8
	StartTime     uint64
	EndTime       uint64
	Bump          uint8
}

type TreasurySetAdminPayload struct {
	Treasury crypto.Address
	Admin    crypto.Address
}

type TreasurySetStartTimePayload struct {
	Treasury  crypto.Address
	StartTime uint64
}

type TreasuryClosePayload struct {
	Treasury    crypto.Address
	Destination crypto.Address
}

type PromiseOpenPayload struct {
	Treasury    crypto.Address
	Beneficiary crypto.Address
	Amount      *uint256.Int
}

type PromiseSetAmountPayload struct {
	Treasury    crypto.Address
	Beneficiary crypto.Address
	Amount      *uint256.Int
}

// PromiseClaimPayload claims the signer's promise in Treasury.
type PromiseClaimPayload struct {
	Treasury    crypto.Address
	Destination crypto.Address
}

type PromiseClosePayload struct {
	Treasury    crypto.Address
	Beneficiary crypto.Address
}
