package treasury

import (
	"fmt"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/native/custody"
)

// custodyService is the slice of the token custody service the treasury
// needs. Both value-moving calls require the treasury's derived authority.
type custodyService interface {
	Account(id crypto.Address) (*custody.Account, error)
	Transfer(from, to crypto.Address, auth custody.Authority, amount *uint256.Int) error
	CloseAccount(account, destination crypto.Address, auth custody.Authority) error
}

func (e *Engine) authority(t *Treasury) (custody.Authority, error) {
	auth := custody.DerivedAuthority(e.program, authoritySeeds(t.ID), t.AuthorityBump)
	if auth.Address != t.Authority {
		return custody.Authority{}, fmt.Errorf("%w: stored authority does not re-derive", ErrInvalidAuthorityDerivation)
	}
	return auth, nil
}

func (e *Engine) custodyBalance(t *Treasury) (*uint256.Int, error) {
	if e.custody == nil {
		return nil, errNilCustody
	}
	acc, err := e.custody.Account(t.Custody)
	if err != nil {
		return nil, fmt.Errorf("treasury: load custody account: %w", err)
	}
	return acc.Balance, nil
}

// payOut moves amount from the treasury custody account to destination.
func (e *Engine) payOut(t *Treasury, destination crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if e.custody == nil {
		return errNilCustody
	}
	auth, err := e.authority(t)
	if err != nil {
		return err
	}
	if err := e.custody.Transfer(t.Custody, destination, auth, amount); err != nil {
		return fmt.Errorf("treasury: transfer from custody: %w", err)
	}
	return nil
}

// checkDestination requires destination to be an open account of the
// custody mint, whatever the balance being moved.
func (e *Engine) checkDestination(t *Treasury, destination crypto.Address) error {
	if e.custody == nil {
		return errNilCustody
	}
	src, err := e.custody.Account(t.Custody)
	if err != nil {
		return err
	}
	dst, err := e.custody.Account(destination)
	if err != nil {
		return fmt.Errorf("treasury: destination: %w", err)
	}
	if dst.Mint != src.Mint {
		return fmt.Errorf("treasury: destination holds %s, custody holds %s: %w", dst.Mint, src.Mint, custody.ErrMintMismatch)
	}
	return nil
}

// releaseCustody closes the custody account, paying its deposit to the rent
// collector.
func (e *Engine) releaseCustody(t *Treasury) error {
	if e.custody == nil {
		return errNilCustody
	}
	auth, err := e.authority(t)
	if err != nil {
		return err
	}
	if err := e.custody.CloseAccount(t.Custody, t.RentCollector, auth); err != nil {
		return fmt.Errorf("treasury: close custody account: %w", err)
	}
	return nil
}

// checkSolvency asserts custody balance >= TotalNonClaimed and
// TotalNonClaimed <= TotalPromised.
func (e *Engine) checkSolvency(t *Treasury) error {
	balance, err := e.custodyBalance(t)
	if err != nil {
		return err
	}
	if balance.Lt(t.TotalNonClaimed) {
		return fmt.Errorf("%w: balance %s, outstanding %s", ErrSolvencyViolated, balance.Dec(), t.TotalNonClaimed.Dec())
	}
	if t.TotalPromised.Lt(t.TotalNonClaimed) {
		return fmt.Errorf("%w: outstanding %s exceeds promised %s", ErrAccountingCorrupted, t.TotalNonClaimed.Dec(), t.TotalPromised.Dec())
	}
	return nil
}
