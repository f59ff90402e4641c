package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/internal/safemath"
	"promisevault/native/custody"
)

type storedAccount struct {
	ID              crypto.Address
	Mint            string
	Owner           crypto.Address
	Delegate        crypto.Address
	DelegatedAmount *uint256.Int
	CloseAuthority  crypto.Address
	Balance         *uint256.Int
	Deposit         uint64
	Status          uint8
}

func (s *storedAccount) toAccount() (*custody.Account, error) {
	status := custody.AccountStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: invalid custody account status %d", s.Status)
	}
	return &custody.Account{
		ID:              s.ID,
		Mint:            s.Mint,
		Owner:           s.Owner,
		Delegate:        s.Delegate,
		DelegatedAmount: safemath.Clone(s.DelegatedAmount),
		CloseAuthority:  s.CloseAuthority,
		Balance:         safemath.Clone(s.Balance),
		Deposit:         s.Deposit,
		Status:          status,
	}, nil
}

type storedMint struct {
	Symbol    string
	Authority crypto.Address
	Supply    *uint256.Int
}

// CustodyAccountGet loads custody account id.
func (m *Manager) CustodyAccountGet(id crypto.Address) (*custody.Account, bool, error) {
	var stored storedAccount
	ok, err := m.KVGet(prefixedKey(custodyPrefix, id[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := stored.toAccount()
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// CustodyAccountPut stores acc under its ID.
func (m *Manager) CustodyAccountPut(acc *custody.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil custody account")
	}
	stored := &storedAccount{
		ID:              acc.ID,
		Mint:            acc.Mint,
		Owner:           acc.Owner,
		Delegate:        acc.Delegate,
		DelegatedAmount: safemath.Clone(acc.DelegatedAmount),
		CloseAuthority:  acc.CloseAuthority,
		Balance:         safemath.Clone(acc.Balance),
		Deposit:         acc.Deposit,
		Status:          uint8(acc.Status),
	}
	return m.KVPut(prefixedKey(custodyPrefix, acc.ID[:]), stored)
}

// MintGet loads the mint registered under symbol.
func (m *Manager) MintGet(symbol string) (*custody.Mint, bool, error) {
	var stored storedMint
	ok, err := m.KVGet(prefixedKey(mintPrefix, []byte(symbol)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &custody.Mint{
		Symbol:    stored.Symbol,
		Authority: stored.Authority,
		Supply:    safemath.Clone(stored.Supply),
	}, true, nil
}

// MintPut stores mint under its symbol.
func (m *Manager) MintPut(mint *custody.Mint) error {
	if mint == nil {
		return fmt.Errorf("state: nil mint")
	}
	stored := &storedMint{Symbol: mint.Symbol, Authority: mint.Authority, Supply: safemath.Clone(mint.Supply)}
	return m.KVPut(prefixedKey(mintPrefix, []byte(mint.Symbol)), stored)
}
