package custody

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"promisevault/core/events"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/internal/safemath"
)

var errNilState = errors.New("custody service: state not configured")

type engineState interface {
	CustodyAccountGet(id crypto.Address) (*Account, bool, error)
	CustodyAccountPut(acc *Account) error
	MintGet(symbol string) (*Mint, bool, error)
	MintPut(m *Mint) error
	NativeDebit(addr crypto.Address, amount uint64) error
	NativeCredit(addr crypto.Address, amount uint64) error
}

type custodyEvent struct {
	evt *types.Event
}

func (e custodyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e custodyEvent) Event() *types.Event { return e.evt }

// Service owns mints and custody accounts. Every mutation checks that the
// presented authority is the one registered on the record.
type Service struct {
	state          engineState
	emitter        events.Emitter
	program        crypto.Address
	signer         crypto.Address
	accountDeposit uint64
}

// NewService creates a custody service with a no-op emitter.
func NewService() *Service {
	return &Service{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the service.
func (s *Service) SetState(state engineState) { s.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Service) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetProgram sets the program address derived authorities must be rooted in.
func (s *Service) SetProgram(program crypto.Address) { s.program = program }

// SetSigner records the signer of the transaction being executed. Signer
// authorities for any other address are refused.
func (s *Service) SetSigner(signer crypto.Address) { s.signer = signer }

// SetAccountDeposit sets the native deposit charged when an account opens.
func (s *Service) SetAccountDeposit(amount uint64) { s.accountDeposit = amount }

// AccountDeposit reports the configured account deposit.
func (s *Service) AccountDeposit() uint64 { return s.accountDeposit }

func (s *Service) emit(evt *types.Event) {
	if s == nil || s.emitter == nil || evt == nil {
		return
	}
	s.emitter.Emit(custodyEvent{evt: evt})
}

func (s *Service) verify(auth Authority, expected crypto.Address) error {
	if expected.IsZero() || auth.Address.IsZero() || auth.Address != expected {
		return ErrUnauthorizedAuthority
	}
	if !auth.derived {
		if s.signer.IsZero() || auth.Address != s.signer {
			return ErrUnauthorizedAuthority
		}
		return nil
	}
	if auth.program != s.program {
		return ErrUnauthorizedAuthority
	}
	addr, err := crypto.CreateDerivedAddress(auth.program, auth.seeds, auth.bump)
	if err != nil || addr != auth.Address {
		return ErrUnauthorizedAuthority
	}
	return nil
}

func (s *Service) loadAccount(id crypto.Address) (*Account, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	acc, ok, err := s.state.CustodyAccountGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || acc.Status != AccountOpen {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acc, nil
}

func (s *Service) loadMint(symbol string) (*Mint, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	mint, ok, err := s.state.MintGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, normalized)
	}
	return mint, nil
}

// Account returns a copy of the open account id.
func (s *Service) Account(id crypto.Address) (*Account, error) {
	acc, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// Mint returns a copy of the mint registered under symbol.
func (s *Service) Mint(symbol string) (*Mint, error) {
	mint, err := s.loadMint(symbol)
	if err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// CreateMint registers a new token. It is only reachable from genesis.
func (s *Service) CreateMint(symbol string, authority crypto.Address) (*Mint, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if authority.IsZero() {
		return nil, fmt.Errorf("custody: mint authority must be set")
	}
	if _, ok, err := s.state.MintGet(normalized); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrMintExists, normalized)
	}
	mint := &Mint{Symbol: normalized, Authority: authority, Supply: new(uint256.Int)}
	if err := s.state.MintPut(mint); err != nil {
		return nil, err
	}
	s.emit(NewMintCreatedEvent(mint))
	return mint.Clone(), nil
}

// InitAccount opens custody account id for mint, controlled by owner. The
// payer funds the account deposit. Identifiers of closed accounts are never
// reused.
func (s *Service) InitAccount(payer, id crypto.Address, mint string, owner crypto.Address) (*Account, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	m, err := s.loadMint(mint)
	if err != nil {
		return nil, err
	}
	if _, ok, err := s.state.CustodyAccountGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	if s.accountDeposit > 0 {
		if err := s.state.NativeDebit(payer, s.accountDeposit); err != nil {
			return nil, fmt.Errorf("custody: fund account deposit: %w", err)
		}
	}
	acc := &Account{
		ID:              id,
		Mint:            m.Symbol,
		Owner:           owner,
		DelegatedAmount: new(uint256.Int),
		Balance:         new(uint256.Int),
		Deposit:         s.accountDeposit,
		Status:          AccountOpen,
	}
	if err := s.state.CustodyAccountPut(acc); err != nil {
		return nil, err
	}
	s.emit(NewAccountOpenedEvent(acc))
	return acc.Clone(), nil
}

// MintTo issues amount new tokens into account.
func (s *Service) MintTo(symbol string, account crypto.Address, auth Authority, amount *uint256.Int) error {
	m, err := s.loadMint(symbol)
	if err != nil {
		return err
	}
	if err := s.verify(auth, m.Authority); err != nil {
		return err
	}
	acc, err := s.loadAccount(account)
	if err != nil {
		return err
	}
	if acc.Mint != m.Symbol {
		return ErrMintMismatch
	}
	amt := safemath.Clone(amount)
	supply, err := safemath.Add(m.Supply, amt)
	if err != nil {
		return fmt.Errorf("custody: mint supply: %w", err)
	}
	balance, err := safemath.Add(acc.Balance, amt)
	if err != nil {
		return fmt.Errorf("custody: account balance: %w", err)
	}
	m.Supply = supply
	acc.Balance = balance
	if err := s.state.MintPut(m); err != nil {
		return err
	}
	if err := s.state.CustodyAccountPut(acc); err != nil {
		return err
	}
	s.emit(NewMintedEvent(m.Symbol, acc.ID, amt))
	return nil
}

// Transfer moves amount from one account to another of the same mint. The
// authority must be the owner of from, or its delegate within the remaining
// allowance.
func (s *Service) Transfer(from, to crypto.Address, auth Authority, amount *uint256.Int) error {
	src, err := s.loadAccount(from)
	if err != nil {
		return err
	}
	dst, err := s.loadAccount(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	amt := safemath.Clone(amount)
	viaDelegate := false
	if err := s.verify(auth, src.Owner); err != nil {
		if !src.HasDelegate() || s.verify(auth, src.Delegate) != nil {
			return err
		}
		viaDelegate = true
	}
	if src.Balance.Lt(amt) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, src.Balance.Dec(), amt.Dec())
	}
	if viaDelegate {
		if src.DelegatedAmount.Lt(amt) {
			return ErrDelegateAllowance
		}
		src.DelegatedAmount = new(uint256.Int).Sub(src.DelegatedAmount, amt)
		if src.DelegatedAmount.IsZero() {
			src.Delegate = crypto.Address{}
		}
	}
	if from == to {
		if viaDelegate {
			return s.state.CustodyAccountPut(src)
		}
		return nil
	}
	credited, err := safemath.Add(dst.Balance, amt)
	if err != nil {
		return fmt.Errorf("custody: destination balance: %w", err)
	}
	src.Balance = new(uint256.Int).Sub(src.Balance, amt)
	dst.Balance = credited
	if err := s.state.CustodyAccountPut(src); err != nil {
		return err
	}
	if err := s.state.CustodyAccountPut(dst); err != nil {
		return err
	}
	s.emit(NewTransferEvent(src.Mint, from, to, amt))
	return nil
}

// Approve installs delegate with an allowance of amount. Only the owner may
// approve; a new approval replaces the previous one.
func (s *Service) Approve(account crypto.Address, auth Authority, delegate crypto.Address, amount *uint256.Int) error {
	acc, err := s.loadAccount(account)
	if err != nil {
		return err
	}
	if err := s.verify(auth, acc.Owner); err != nil {
		return err
	}
	if delegate.IsZero() {
		return fmt.Errorf("custody: delegate must be set")
	}
	acc.Delegate = delegate
	acc.DelegatedAmount = safemath.Clone(amount)
	if err := s.state.CustodyAccountPut(acc); err != nil {
		return err
	}
	s.emit(NewApprovedEvent(acc))
	return nil
}

// Revoke removes any delegate from account.
func (s *Service) Revoke(account crypto.Address, auth Authority) error {
	acc, err := s.loadAccount(account)
	if err != nil {
		return err
	}
	if err := s.verify(auth, acc.Owner); err != nil {
		return err
	}
	acc.Delegate = crypto.Address{}
	acc.DelegatedAmount = new(uint256.Int)
	if err := s.state.CustodyAccountPut(acc); err != nil {
		return err
	}
	s.emit(NewRevokedEvent(acc))
	return nil
}

func (s *Service) closeController(acc *Account) crypto.Address {
	if acc.HasCloseAuthority() {
		return acc.CloseAuthority
	}
	return acc.Owner
}

// SetCloseAuthority replaces the close authority of account. The current close
// authority, or the owner when none is set, must authorise it. The zero
// address clears the close authority.
func (s *Service) SetCloseAuthority(account crypto.Address, auth Authority, newAuthority crypto.Address) error {
	acc, err := s.loadAccount(account)
	if err != nil {
		return err
	}
	if err := s.verify(auth, s.closeController(acc)); err != nil {
		return err
	}
	acc.CloseAuthority = newAuthority
	if err := s.state.CustodyAccountPut(acc); err != nil {
		return err
	}
	s.emit(NewCloseAuthoritySetEvent(acc))
	return nil
}

// CloseAccount retires an empty account and pays its deposit to destination.
// The record is kept as a closed tombstone.
func (s *Service) CloseAccount(account, destination crypto.Address, auth Authority) error {
	acc, err := s.loadAccount(account)
	if err != nil {
		return err
	}
	if err := s.verify(auth, s.closeController(acc)); err != nil {
		return err
	}
	if !acc.Balance.IsZero() {
		return fmt.Errorf("%w: %s remaining", ErrNonZeroBalance, acc.Balance.Dec())
	}
	if destination.IsZero() {
		return fmt.Errorf("custody: close destination must be set")
	}
	deposit := acc.Deposit
	if deposit > 0 {
		if err := s.state.NativeCredit(destination, deposit); err != nil {
			return err
		}
	}
	closed := &Account{
		ID:              acc.ID,
		Mint:            acc.Mint,
		DelegatedAmount: new(uint256.Int),
		Balance:         new(uint256.Int),
		Status:          AccountClosed,
	}
	if err := s.state.CustodyAccountPut(closed); err != nil {
		return err
	}
	s.emit(NewAccountClosedEvent(acc.ID, destination, deposit))
	return nil
}
