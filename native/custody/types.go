package custody

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/internal/safemath"
)

// AccountStatus tracks the lifecycle of a custody account record.
type AccountStatus uint8

const (
	AccountUninitialized AccountStatus = iota
	AccountOpen
	AccountClosed
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountUninitialized, AccountOpen, AccountClosed:
		return true
	default:
		return false
	}
}

func (s AccountStatus) String() string {
	switch s {
	case AccountUninitialized:
		return "uninitialized"
	case AccountOpen:
		return "open"
	case AccountClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrAccountNotFound       = errors.New("custody: account not found")
	ErrAccountExists         = errors.New("custody: account already exists")
	ErrUnauthorizedAuthority = errors.New("custody: unauthorized authority")
	ErrInsufficientBalance   = errors.New("custody: insufficient balance")
	ErrMintMismatch          = errors.New("custody: mint mismatch")
	ErrNonZeroBalance        = errors.New("custody: account balance is not zero")
	ErrMintNotFound          = errors.New("custody: mint not found")
	ErrMintExists            = errors.New("custody: mint already exists")
	ErrDelegateAllowance     = errors.New("custody: delegate allowance exceeded")
	ErrInvalidOwner          = errors.New("custody: owner must be set")
	ErrInvalidSymbol         = errors.New("custody: invalid mint symbol")
)

// Account is a token holding controlled by Owner. A delegate may move up to
// DelegatedAmount on the owner's behalf. A non-zero CloseAuthority replaces
// the owner as the only party allowed to close the account.
type Account struct {
	ID              crypto.Address
	Mint            string
	Owner           crypto.Address
	Delegate        crypto.Address
	DelegatedAmount *uint256.Int
	CloseAuthority  crypto.Address
	Balance         *uint256.Int
	Deposit         uint64
	Status          AccountStatus
}

// Clone returns a deep copy so callers can mutate it without affecting the
// stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Balance = safemath.Clone(a.Balance)
	clone.DelegatedAmount = safemath.Clone(a.DelegatedAmount)
	return &clone
}

// HasDelegate reports whether a delegate is installed.
func (a *Account) HasDelegate() bool { return a != nil && !a.Delegate.IsZero() }

// HasCloseAuthority reports whether a close authority is installed.
func (a *Account) HasCloseAuthority() bool { return a != nil && !a.CloseAuthority.IsZero() }

// Mint describes a fungible token and the authority allowed to issue it.
type Mint struct {
	Symbol    string
	Authority crypto.Address
	Supply    *uint256.Int
}

func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Supply = safemath.Clone(m.Supply)
	return &clone
}

// NormalizeSymbol upper-cases symbol and checks it is 1-16 letters or digits.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" || len(trimmed) > 16 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return trimmed, nil
}

// AccountID derives the address of a custody account opened by creator with
// seed.
func AccountID(creator crypto.Address, seed []byte) crypto.Address {
	return crypto.DeriveRecordAddress("custody-account", creator, seed)
}
