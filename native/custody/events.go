package custody

import (
	"strconv"

	"github.com/holiman/uint256"

	"promisevault/core/types"
	"promisevault/crypto"
)

const (
	EventTypeMintCreated       = "custody.mint_created"
	EventTypeAccountOpened     = "custody.account_opened"
	EventTypeMinted            = "custody.minted"
	EventTypeTransfer          = "custody.transfer"
	EventTypeApproved          = "custody.approved"
	EventTypeRevoked           = "custody.revoked"
	EventTypeCloseAuthoritySet = "custody.close_authority_set"
	EventTypeAccountClosed     = "custody.account_closed"
)

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatOptional(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

func NewMintCreatedEvent(m *Mint) *types.Event {
	return &types.Event{
		Type: EventTypeMintCreated,
		Attributes: map[string]string{
			"mint":      m.Symbol,
			"authority": m.Authority.String(),
		},
	}
}

func NewAccountOpenedEvent(acc *Account) *types.Event {
	return &types.Event{
		Type: EventTypeAccountOpened,
		Attributes: map[string]string{
			"account": acc.ID.String(),
			"mint":    acc.Mint,
			"owner":   acc.Owner.String(),
			"deposit": strconv.FormatUint(acc.Deposit, 10),
		},
	}
}

func NewMintedEvent(mint string, account crypto.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"mint":    mint,
			"account": account.String(),
			"amount":  formatAmount(amount),
		},
	}
}

func NewTransferEvent(mint string, from, to crypto.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"mint":   mint,
			"from":   from.String(),
			"to":     to.String(),
			"amount": formatAmount(amount),
		},
	}
}

func NewApprovedEvent(acc *Account) *types.Event {
	return &types.Event{
		Type: EventTypeApproved,
		Attributes: map[string]string{
			"account":  acc.ID.String(),
			"delegate": acc.Delegate.String(),
			"amount":   formatAmount(acc.DelegatedAmount),
		},
	}
}

func NewRevokedEvent(acc *Account) *types.Event {
	return &types.Event{
		Type:       EventTypeRevoked,
		Attributes: map[string]string{"account": acc.ID.String()},
	}
}

func NewCloseAuthoritySetEvent(acc *Account) *types.Event {
	return &types.Event{
		Type: EventTypeCloseAuthoritySet,
		Attributes: map[string]string{
			"account":   acc.ID.String(),
			"authority": formatOptional(acc.CloseAuthority),
		},
	}
}

func NewAccountClosedEvent(id, destination crypto.Address, deposit uint64) *types.Event {
	return &types.Event{
		Type: EventTypeAccountClosed,
		Attributes: map[string]string{
			"account":     id.String(),
			"destination": destination.String(),
			"deposit":     strconv.FormatUint(deposit, 10),
		},
	}
}
