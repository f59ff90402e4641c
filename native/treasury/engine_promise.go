package treasury

import (
	"fmt"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/internal/safemath"
)

func (e *Engine) lookupPromise(treasuryID, beneficiary crypto.Address) (*Promise, bool, error) {
	p, ok, err := e.state.PromiseGet(PromiseID(treasuryID, beneficiary))
	if err != nil || !ok {
		return nil, false, err
	}
	if p.Treasury != treasuryID || p.Beneficiary != beneficiary {
		return nil, false, ErrPromiseTreasuryMismatch
	}
	return p, true, nil
}

func (e *Engine) loadOpenPromise(treasuryID, beneficiary crypto.Address) (*Promise, error) {
	p, ok, err := e.lookupPromise(treasuryID, beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok || p.Status == PromiseUnopened {
		return nil, fmt.Errorf("%w: %s in %s", ErrPromiseNotFound, beneficiary, treasuryID)
	}
	if p.Status != PromiseOpen {
		return nil, fmt.Errorf("%w: %s", ErrPromiseClosed, p.Status)
	}
	return p, nil
}

// Promise returns a copy of the promise of beneficiary in treasuryID.
func (e *Engine) Promise(treasuryID, beneficiary crypto.Address) (*Promise, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, ok, err := e.lookupPromise(treasuryID, beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrPromiseNotFound, beneficiary, treasuryID)
	}
	return p.Clone(), nil
}

// Promises lists the live promises of treasuryID in index order.
func (e *Engine) Promises(treasuryID crypto.Address) ([]*Promise, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	beneficiaries, err := e.state.PromiseIndex(treasuryID)
	if err != nil {
		return nil, err
	}
	out := make([]*Promise, 0, len(beneficiaries))
	for _, beneficiary := range beneficiaries {
		p, ok, err := e.lookupPromise(treasuryID, beneficiary)
		if err != nil {
			return nil, err
		}
		if !ok || p.Status != PromiseOpen {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// OpenPromise grants beneficiary amount out of the treasury. The treasury
// totals and the count change in the same unit as the new record.
func (e *Engine) OpenPromise(caller, treasuryID, beneficiary crypto.Address, amount *uint256.Int) (*Promise, error) {
	t, err := e.loadAdministered(caller, treasuryID)
	if err != nil {
		return nil, err
	}
	if beneficiary.IsZero() {
		return nil, ErrInvalidAddress
	}
	amt := safemath.Clone(amount)
	if t.Mode == ModeFixed && amt.IsZero() {
		return nil, fmt.Errorf("%w: fixed promises need a positive amount", ErrInvalidAmount)
	}
	if existing, ok, err := e.lookupPromise(treasuryID, beneficiary); err != nil {
		return nil, err
	} else if ok {
		switch existing.Status {
		case PromiseOpen:
			return nil, ErrPromiseExists
		case PromiseClaimed, PromiseClosed:
			return nil, ErrPromiseClosed
		}
	}
	nonClaimed, err := safemath.Add(t.TotalNonClaimed, amt)
	if err != nil {
		return nil, err
	}
	balance, err := e.custodyBalance(t)
	if err != nil {
		return nil, err
	}
	if balance.Lt(nonClaimed) {
		return nil, fmt.Errorf("%w: need %s, custody holds %s", ErrInsufficientPromiseFunds, nonClaimed.Dec(), balance.Dec())
	}
	promised, err := safemath.Add(t.TotalPromised, amt)
	if err != nil {
		return nil, err
	}
	count, err := safemath.AddU64(t.PromiseCount, 1)
	if err != nil {
		return nil, err
	}
	if e.promiseDeposit > 0 {
		if err := e.state.NativeDebit(caller, e.promiseDeposit); err != nil {
			return nil, fmt.Errorf("treasury: fund promise deposit: %w", err)
		}
	}
	p := &Promise{
		ID:          PromiseID(treasuryID, beneficiary),
		Treasury:    treasuryID,
		Beneficiary: beneficiary,
		TotalAmount: amt,
		NonClaimed:  safemath.Clone(amt),
		Deposit:     e.promiseDeposit,
		Status:      PromiseOpen,
	}
	t.TotalPromised = promised
	t.TotalNonClaimed = nonClaimed
	t.PromiseCount = count
	if err := e.persist(t, p); err != nil {
		return nil, err
	}
	if err := e.state.PromiseIndexAdd(treasuryID, beneficiary); err != nil {
		return nil, err
	}
	e.emit(NewPromiseOpenedEvent(p))
	return p.Clone(), nil
}

// SetPromiseAmount resizes an adjustable promise to newTotal. After start
// the amount can only grow.
func (e *Engine) SetPromiseAmount(caller, treasuryID, beneficiary crypto.Address, newTotal *uint256.Int) error {
	t, err := e.loadAdministered(caller, treasuryID)
	if err != nil {
		return err
	}
	if t.Mode != ModeAdjustable {
		return ErrAmountNotAdjustable
	}
	p, err := e.loadOpenPromise(treasuryID, beneficiary)
	if err != nil {
		return err
	}
	target := safemath.Clone(newTotal)
	if t.Started(e.now()) && target.Lt(p.TotalAmount) {
		return fmt.Errorf("%w: %s below %s", ErrWithdrawalAfterStartNotAllowed, target.Dec(), p.TotalAmount.Dec())
	}
	claimed, err := p.Claimed()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	if target.Lt(claimed) {
		return fmt.Errorf("%w: %s below claimed %s", ErrClaimedAmountExceeded, target.Dec(), claimed.Dec())
	}
	newNonClaimed := new(uint256.Int).Sub(target, claimed)

	promised, err := rebalance(t.TotalPromised, p.TotalAmount, target)
	if err != nil {
		return err
	}
	nonClaimed, err := rebalance(t.TotalNonClaimed, p.NonClaimed, newNonClaimed)
	if err != nil {
		return err
	}
	balance, err := e.custodyBalance(t)
	if err != nil {
		return err
	}
	if balance.Lt(nonClaimed) {
		return fmt.Errorf("%w: need %s, custody holds %s", ErrInsufficientPromiseFunds, nonClaimed.Dec(), balance.Dec())
	}
	previous := p.TotalAmount
	t.TotalPromised = promised
	t.TotalNonClaimed = nonClaimed
	p.TotalAmount = target
	p.NonClaimed = newNonClaimed
	if err := e.persist(t, p); err != nil {
		return err
	}
	e.emit(NewPromiseAmountSetEvent(p, previous))
	return nil
}

// Claim pays the caller's outstanding entitlement in treasuryID to
// destination. Fixed promises are destroyed by the claim; adjustable ones
// stay open at zero.
func (e *Engine) Claim(caller, treasuryID, destination crypto.Address) (*uint256.Int, error) {
	t, err := e.loadTreasury(treasuryID)
	if err != nil {
		return nil, err
	}
	p, err := e.loadOpenPromise(treasuryID, caller)
	if err != nil {
		return nil, err
	}
	if p.Beneficiary != caller {
		return nil, ErrUnauthorized
	}
	if !t.Started(e.now()) {
		return nil, ErrNotYetStarted
	}
	if destination == t.Custody {
		return nil, ErrClaimTargetIsSource
	}
	amount := safemath.Clone(p.NonClaimed)
	if amount.IsZero() && t.Mode == ModeAdjustable {
		return nil, ErrNothingToClaim
	}
	if err := e.payOut(t, destination, amount); err != nil {
		return nil, err
	}
	if t.TotalNonClaimed, err = safemath.Sub(t.TotalNonClaimed, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	p.NonClaimed = new(uint256.Int)

	if t.Mode == ModeFixed {
		if err := e.retirePromise(t, p, PromiseClaimed); err != nil {
			return nil, err
		}
		e.emit(NewPromiseClaimedEvent(p, t, destination, amount))
		return amount, nil
	}
	if err := e.persist(t, p); err != nil {
		return nil, err
	}
	e.emit(NewPromiseClaimedEvent(p, t, destination, amount))
	return amount, nil
}

// ClosePromise cancels the promise of beneficiary. Treasury totals shrink by
// exactly what the promise still accounted for.
func (e *Engine) ClosePromise(caller, treasuryID, beneficiary crypto.Address) error {
	t, err := e.loadAdministered(caller, treasuryID)
	if err != nil {
		return err
	}
	if !t.Closable(e.now()) {
		return ErrTooEarlyToClose
	}
	p, err := e.loadOpenPromise(treasuryID, beneficiary)
	if err != nil {
		return err
	}
	released := safemath.Clone(p.NonClaimed)
	if t.TotalNonClaimed, err = safemath.Sub(t.TotalNonClaimed, p.NonClaimed); err != nil {
		return fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	if err := e.retirePromise(t, p, PromiseClosed); err != nil {
		return err
	}
	e.emit(NewPromiseClosedEvent(p, t, released))
	return nil
}

// retirePromise removes p from the treasury totals and leaves a tombstone.
// The caller has already taken p.NonClaimed out of TotalNonClaimed.
func (e *Engine) retirePromise(t *Treasury, p *Promise, status PromiseStatus) error {
	var err error
	if t.TotalPromised, err = safemath.Sub(t.TotalPromised, p.TotalAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	if t.PromiseCount, err = safemath.SubU64(t.PromiseCount, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	if p.Deposit > 0 {
		if err := e.state.NativeCredit(t.RentCollector, p.Deposit); err != nil {
			return err
		}
	}
	tombstone := &Promise{
		ID:          p.ID,
		Treasury:    p.Treasury,
		Beneficiary: p.Beneficiary,
		TotalAmount: new(uint256.Int),
		NonClaimed:  new(uint256.Int),
		Status:      status,
	}
	if err := e.persist(t, tombstone); err != nil {
		return err
	}
	return e.state.PromiseIndexRemove(p.Treasury, p.Beneficiary)
}

// persist checks the solvency invariant and writes both records.
func (e *Engine) persist(t *Treasury, p *Promise) error {
	if err := e.checkSolvency(t); err != nil {
		return err
	}
	if err := e.state.PromisePut(p); err != nil {
		return err
	}
	return e.state.TreasuryPut(t)
}

// rebalance returns total - old + updated with checked arithmetic.
func rebalance(total, old, updated *uint256.Int) (*uint256.Int, error) {
	without, err := safemath.Sub(total, old)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountingCorrupted, err)
	}
	return safemath.Add(without, updated)
}
