package treasury

import (
	"errors"

	"promisevault/internal/safemath"
	"promisevault/native/custody"
)

var (
	errNilState   = errors.New("treasury engine: state not configured")
	errNilCustody = errors.New("treasury engine: custody service not configured")
)

var (
	ErrUnauthorized                   = errors.New("treasury: caller is not authorized")
	ErrInvalidAuthorityDerivation     = errors.New("treasury: invalid authority derivation")
	ErrAuthorityMismatch              = errors.New("treasury: custody authority does not match derived authority")
	ErrDelegationNotAllowed           = errors.New("treasury: custody account can not be delegated")
	ErrCloseAuthorityNotAllowed       = errors.New("treasury: custody account can not carry a close authority")
	ErrNotYetStarted                  = errors.New("treasury: not started")
	ErrTooEarlyToClose                = errors.New("treasury: too early to close")
	ErrInsufficientPromiseFunds       = errors.New("treasury: insufficient funds for promise")
	ErrWithdrawalAfterStartNotAllowed = errors.New("treasury: promise amount can not shrink after start")
	ErrNothingToClaim                 = errors.New("treasury: nothing to claim")
	ErrClosingTreasuryWithPromises    = errors.New("treasury: closing treasury with promises")
	ErrCloseTargetIsSource            = errors.New("treasury: close target is the custody account")
	ErrClaimTargetIsSource            = errors.New("treasury: claim target is the custody account")
	ErrClaimedAmountExceeded          = errors.New("treasury: new amount is below the claimed amount")
	ErrSolvencyViolated               = errors.New("treasury: custody balance below outstanding obligations")
	ErrAccountingCorrupted            = errors.New("treasury: accounting totals out of range")
	ErrTreasuryNotFound               = errors.New("treasury: treasury not found")
	ErrTreasuryExists                 = errors.New("treasury: treasury already exists")
	ErrTreasuryClosed                 = errors.New("treasury: treasury closed")
	ErrPromiseNotFound                = errors.New("treasury: promise not found")
	ErrPromiseExists                  = errors.New("treasury: promise already exists")
	ErrPromiseClosed                  = errors.New("treasury: promise closed")
	ErrPromiseTreasuryMismatch        = errors.New("treasury: promise belongs to a different treasury")
	ErrAmountNotAdjustable            = errors.New("treasury: promise amounts are fixed in this treasury")
	ErrInvalidAmount                  = errors.New("treasury: invalid amount")
	ErrInvalidMode                    = errors.New("treasury: invalid mode")
	ErrInvalidTime                    = errors.New("treasury: invalid time")
	ErrInvalidAddress                 = errors.New("treasury: address must be set")
)

// Category groups errors by how a caller should react to them.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryTiming        Category = "timing"
	CategoryAccounting    Category = "accounting"
	CategoryInvariant     Category = "invariant"
	CategoryExternal      Category = "external"
	CategoryNotFound      Category = "not-found"
	CategoryInvalid       Category = "invalid"
	CategoryInternal      Category = "internal"
	CategoryNone          Category = ""
)

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryAuthorization, []error{
		ErrUnauthorized, ErrInvalidAuthorityDerivation, ErrAuthorityMismatch,
		ErrDelegationNotAllowed, ErrCloseAuthorityNotAllowed, custody.ErrUnauthorizedAuthority,
	}},
	{CategoryTiming, []error{ErrNotYetStarted, ErrTooEarlyToClose}},
	{CategoryAccounting, []error{
		ErrInsufficientPromiseFunds, ErrWithdrawalAfterStartNotAllowed, ErrNothingToClaim,
		ErrClosingTreasuryWithPromises,
	}},
	{CategoryInvariant, []error{
		ErrClaimedAmountExceeded, ErrSolvencyViolated, ErrAccountingCorrupted,
		ErrPromiseTreasuryMismatch, safemath.ErrOverflow, safemath.ErrUnderflow,
	}},
	{CategoryNotFound, []error{
		ErrTreasuryNotFound, ErrPromiseNotFound, custody.ErrAccountNotFound, custody.ErrMintNotFound,
	}},
	{CategoryExternal, []error{
		custody.ErrInsufficientBalance, custody.ErrMintMismatch, custody.ErrNonZeroBalance,
		custody.ErrDelegateAllowance, custody.ErrAccountExists, custody.ErrMintExists,
		custody.ErrInvalidOwner, custody.ErrInvalidSymbol,
	}},
	{CategoryInvalid, []error{
		ErrCloseTargetIsSource, ErrClaimTargetIsSource, ErrTreasuryExists, ErrTreasuryClosed,
		ErrPromiseExists, ErrPromiseClosed, ErrAmountNotAdjustable, ErrInvalidAmount,
		ErrInvalidMode, ErrInvalidTime, ErrInvalidAddress,
	}},
}

// Classify maps err onto its category. Wrapped errors are matched with
// errors.Is; unknown errors are internal.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	for _, group := range categories {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.category
			}
		}
	}
	return CategoryInternal
}
