package core

import (
	"github.com/holiman/uint256"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
)

// reader returns a session over committed state. Callers must hold r.mu.
func (r *Runtime) reader() *session {
	return r.newSession(r.db, crypto.Address{}, r.nowFn())
}

// TreasurySummary pairs a treasury with the live balance of its custody
// account.
type TreasurySummary struct {
	Treasury       *treasury.Treasury
	CustodyBalance *uint256.Int
}

// Treasury returns the treasury record id in any status.
func (r *Runtime) Treasury(id crypto.Address) (*treasury.Treasury, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().treasury.Treasury(id)
}

// TreasurySummary returns the treasury and its custody balance. Closed
// treasuries report a zero balance since their custody account is gone.
func (r *Runtime) TreasurySummary(id crypto.Address) (*TreasurySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := r.reader()
	t, err := sess.treasury.Treasury(id)
	if err != nil {
		return nil, err
	}
	balance := new(uint256.Int)
	if t.Status == treasury.TreasuryOpen {
		acc, err := sess.custody.Account(t.Custody)
		if err != nil {
			return nil, err
		}
		balance = acc.Balance
	}
	return &TreasurySummary{Treasury: t, CustodyBalance: balance}, nil
}

// Promise returns the promise of beneficiary in treasuryID in any status.
func (r *Runtime) Promise(treasuryID, beneficiary crypto.Address) (*treasury.Promise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().treasury.Promise(treasuryID, beneficiary)
}

// Promises lists the open promises of treasuryID.
func (r *Runtime) Promises(treasuryID crypto.Address) ([]*treasury.Promise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().treasury.Promises(treasuryID)
}

// CustodyAccount returns custody account id.
func (r *Runtime) CustodyAccount(id crypto.Address) (*custody.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().custody.Account(id)
}

// Mint returns the mint registered under symbol.
func (r *Runtime) Mint(symbol string) (*custody.Mint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().custody.Mint(symbol)
}

// Account returns the native account of addr. Unknown addresses read as
// empty accounts.
func (r *Runtime) Account(addr crypto.Address) (*types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().state.GetAccount(addr)
}

// Sequence returns the number of committed transactions.
func (r *Runtime) Sequence() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader().state.Sequence()
}

// DeriveAuthority returns the canonical authority and bump of treasuryID.
func (r *Runtime) DeriveAuthority(treasuryID crypto.Address) (crypto.Address, uint8, error) {
	return treasury.DeriveAuthority(r.program, treasuryID)
}
