package state

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/internal/safemath"
	"promisevault/native/treasury"
)

type storedTreasury struct {
	ID              crypto.Address
	Admin           crypto.Address
	Custody         crypto.Address
	RentCollector   crypto.Address
	Authority       crypto.Address
	AuthorityBump   uint8
	Mode            uint8
	TotalPromised   *uint256.Int
	TotalNonClaimed *uint256.Int
	PromiseCount    uint64
	StartTime       uint64
	EndTime         uint64
	Deposit         uint64
	Status          uint8
}

func newStoredTreasury(t *treasury.Treasury) (*storedTreasury, error) {
	if t.StartTime < 0 || t.EndTime < 0 {
		return nil, fmt.Errorf("state: treasury %s has negative timestamps", t.ID)
	}
	return &storedTreasury{
		ID:              t.ID,
		Admin:           t.Admin,
		Custody:         t.Custody,
		RentCollector:   t.RentCollector,
		Authority:       t.Authority,
		AuthorityBump:   t.AuthorityBump,
		Mode:            uint8(t.Mode),
		TotalPromised:   safemath.Clone(t.TotalPromised),
		TotalNonClaimed: safemath.Clone(t.TotalNonClaimed),
		PromiseCount:    t.PromiseCount,
		StartTime:       uint64(t.StartTime),
		EndTime:         uint64(t.EndTime),
		Deposit:         t.Deposit,
		Status:          uint8(t.Status),
	}, nil
}

func (s *storedTreasury) toTreasury() (*treasury.Treasury, error) {
	status := treasury.TreasuryStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: invalid treasury status %d", s.Status)
	}
	mode := treasury.Mode(s.Mode)
	if !mode.Valid() {
		return nil, fmt.Errorf("state: invalid treasury mode %d", s.Mode)
	}
	if s.StartTime > math.MaxInt64 || s.EndTime > math.MaxInt64 {
		return nil, fmt.Errorf("state: treasury timestamp out of range")
	}
	return &treasury.Treasury{
		ID:              s.ID,
		Admin:           s.Admin,
		Custody:         s.Custody,
		RentCollector:   s.RentCollector,
		Authority:       s.Authority,
		AuthorityBump:   s.AuthorityBump,
		Mode:            mode,
		TotalPromised:   safemath.Clone(s.TotalPromised),
		TotalNonClaimed: safemath.Clone(s.TotalNonClaimed),
		PromiseCount:    s.PromiseCount,
		StartTime:       int64(s.StartTime),
		EndTime:         int64(s.EndTime),
		Deposit:         s.Deposit,
		Status:          status,
	}, nil
}

type storedPromise struct {
	ID          [32]byte
	Treasury    crypto.Address
	Beneficiary crypto.Address
	TotalAmount *uint256.Int
	NonClaimed  *uint256.Int
	Deposit     uint64
	Status      uint8
}

func newStoredPromise(p *treasury.Promise) *storedPromise {
	return &storedPromise{
		ID:          p.ID,
		Treasury:    p.Treasury,
		Beneficiary: p.Beneficiary,
		TotalAmount: safemath.Clone(p.TotalAmount),
		NonClaimed:  safemath.Clone(p.NonClaimed),
		Deposit:     p.Deposit,
		Status:      uint8(p.Status),
	}
}

func (s *storedPromise) toPromise() (*treasury.Promise, error) {
	status := treasury.PromiseStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: invalid promise status %d", s.Status)
	}
	return &treasury.Promise{
		ID:          s.ID,
		Treasury:    s.Treasury,
		Beneficiary: s.Beneficiary,
		TotalAmount: safemath.Clone(s.TotalAmount),
		NonClaimed:  safemath.Clone(s.NonClaimed),
		Deposit:     s.Deposit,
		Status:      status,
	}, nil
}

// TreasuryGet loads the treasury record id.
func (m *Manager) TreasuryGet(id crypto.Address) (*treasury.Treasury, bool, error) {
	var stored storedTreasury
	ok, err := m.KVGet(prefixedKey(treasuryPrefix, id[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	t, err := stored.toTreasury()
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// TreasuryPut stores t under its ID.
func (m *Manager) TreasuryPut(t *treasury.Treasury) error {
	if t == nil {
		return fmt.Errorf("state: nil treasury")
	}
	stored, err := newStoredTreasury(t)
	if err != nil {
		return err
	}
	return m.KVPut(prefixedKey(treasuryPrefix, t.ID[:]), stored)
}

// PromiseGet loads the promise record id.
func (m *Manager) PromiseGet(id [32]byte) (*treasury.Promise, bool, error) {
	var stored storedPromise
	ok, err := m.KVGet(prefixedKey(promisePrefix, id[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	p, err := stored.toPromise()
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// PromisePut stores p under its ID.
func (m *Manager) PromisePut(p *treasury.Promise) error {
	if p == nil {
		return fmt.Errorf("state: nil promise")
	}
	return m.KVPut(prefixedKey(promisePrefix, p.ID[:]), newStoredPromise(p))
}

func promiseIndexKey(treasuryID crypto.Address) []byte {
	return prefixedKey(promiseIndexPrefix, treasuryID[:])
}

// PromiseIndexAdd records beneficiary in the treasury's promise index.
func (m *Manager) PromiseIndexAdd(treasuryID, beneficiary crypto.Address) error {
	return m.KVAppend(promiseIndexKey(treasuryID), beneficiary[:])
}

// PromiseIndexRemove drops beneficiary from the treasury's promise index.
func (m *Manager) PromiseIndexRemove(treasuryID, beneficiary crypto.Address) error {
	return m.KVRemove(promiseIndexKey(treasuryID), beneficiary[:])
}

// PromiseIndex lists beneficiaries with a live promise in treasuryID, in the
// order their promises were opened.
func (m *Manager) PromiseIndex(treasuryID crypto.Address) ([]crypto.Address, error) {
	raw, err := m.KVList(promiseIndexKey(treasuryID))
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(raw))
	for _, entry := range raw {
		addr, err := crypto.BytesToAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("state: corrupt promise index: %w", err)
		}
		out = append(out, addr)
	}
	return out, nil
}
