package state

import (
	"errors"
	"fmt"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/internal/safemath"
)

// ErrInsufficientNativeBalance is returned when a native debit exceeds the
// account balance.
var ErrInsufficientNativeBalance = errors.New("state: insufficient native balance")

// GetAccount loads the native account of addr. Missing accounts read as
// empty.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	var acc types.Account
	if _, err := m.KVGet(prefixedKey(nativeAccountPrefix, addr[:]), &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// PutAccount stores the native account of addr.
func (m *Manager) PutAccount(addr crypto.Address, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	return m.KVPut(prefixedKey(nativeAccountPrefix, addr[:]), acc)
}

// NativeDebit removes amount from the native balance of addr.
func (m *Manager) NativeDebit(addr crypto.Address, amount uint64) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	balance, err := safemath.SubU64(acc.Balance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientNativeBalance, addr, acc.Balance, amount)
	}
	acc.Balance = balance
	return m.PutAccount(addr, acc)
}

// NativeCredit adds amount to the native balance of addr.
func (m *Manager) NativeCredit(addr crypto.Address, amount uint64) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	balance, err := safemath.AddU64(acc.Balance, amount)
	if err != nil {
		return err
	}
	acc.Balance = balance
	return m.PutAccount(addr, acc)
}

// NativeTransfer moves amount between two native accounts.
func (m *Manager) NativeTransfer(from, to crypto.Address, amount uint64) error {
	if err := m.NativeDebit(from, amount); err != nil {
		return err
	}
	return m.NativeCredit(to, amount)
}

// Sequence returns the number of committed transactions.
func (m *Manager) Sequence() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(sequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// SetSequence stores the committed transaction count.
func (m *Manager) SetSequence(seq uint64) error {
	return m.KVPut(sequenceKey, seq)
}

// GenesisApplied reports whether genesis allocations have been written.
func (m *Manager) GenesisApplied() (bool, error) {
	var marker []byte
	return m.KVGet(genesisKey, &marker)
}

// MarkGenesis records the genesis hash so it is applied only once.
func (m *Manager) MarkGenesis(hash []byte) error {
	return m.KVPut(genesisKey, hash)
}
