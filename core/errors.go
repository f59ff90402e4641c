package core

import (
	"errors"

	"promisevault/core/state"
	"promisevault/core/types"
	"promisevault/native/treasury"
)

var (
	ErrChainIDMismatch = errors.New("core: chain id mismatch")
	ErrNonceMismatch   = errors.New("core: nonce mismatch")
	ErrInvalidPayload  = errors.New("core: invalid instruction payload")
	ErrGenesisApplied  = errors.New("core: genesis already applied")
)

// Classify extends treasury.Classify with the runtime's own failures.
func Classify(err error) treasury.Category {
	switch {
	case err == nil:
		return treasury.CategoryNone
	case errors.Is(err, types.ErrMissingSignature):
		return treasury.CategoryAuthorization
	case errors.Is(err, state.ErrInsufficientNativeBalance):
		return treasury.CategoryAccounting
	case errors.Is(err, ErrChainIDMismatch),
		errors.Is(err, ErrNonceMismatch),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, types.ErrNoInstructions):
		return treasury.CategoryInvalid
	}
	return treasury.Classify(err)
}
