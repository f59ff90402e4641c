package treasury

import (
	"encoding/hex"
	"strconv"

	"github.com/holiman/uint256"

	"promisevault/core/types"
	"promisevault/crypto"
)

const (
	EventTypeTreasuryOpened           = "treasury.opened"
	EventTypeTreasuryAdminChanged     = "treasury.admin_changed"
	EventTypeTreasuryStartTimeChanged = "treasury.start_time_changed"
	EventTypeTreasuryClosed           = "treasury.closed"
	EventTypePromiseOpened            = "promise.opened"
	EventTypePromiseAmountSet         = "promise.amount_set"
	EventTypePromiseClaimed           = "promise.claimed"
	EventTypePromiseClosed            = "promise.closed"
)

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func treasuryTotals(t *Treasury, attrs map[string]string) map[string]string {
	attrs["treasury"] = t.ID.String()
	attrs["totalPromised"] = formatAmount(t.TotalPromised)
	attrs["totalNonClaimed"] = formatAmount(t.TotalNonClaimed)
	attrs["promiseCount"] = strconv.FormatUint(t.PromiseCount, 10)
	return attrs
}

// NewTreasuryOpenedEvent returns the canonical payload for a newly opened
// treasury.
func NewTreasuryOpenedEvent(t *Treasury) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryOpened,
		Attributes: map[string]string{
			"treasury":      t.ID.String(),
			"admin":         t.Admin.String(),
			"custody":       t.Custody.String(),
			"rentCollector": t.RentCollector.String(),
			"authority":     t.Authority.String(),
			"mode":          t.Mode.String(),
			"startTime":     strconv.FormatInt(t.StartTime, 10),
			"endTime":       strconv.FormatInt(t.EndTime, 10),
		},
	}
}

func NewAdminChangedEvent(t *Treasury, previous crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryAdminChanged,
		Attributes: map[string]string{
			"treasury": t.ID.String(),
			"previous": previous.String(),
			"admin":    t.Admin.String(),
		},
	}
}

func NewStartTimeChangedEvent(t *Treasury) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryStartTimeChanged,
		Attributes: map[string]string{
			"treasury":  t.ID.String(),
			"startTime": strconv.FormatInt(t.StartTime, 10),
		},
	}
}

// NewTreasuryClosedEvent records the sweep of the remaining custody balance.
func NewTreasuryClosedEvent(t *Treasury, destination crypto.Address, swept *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryClosed,
		Attributes: map[string]string{
			"treasury":      t.ID.String(),
			"destination":   destination.String(),
			"swept":         formatAmount(swept),
			"rentCollector": t.RentCollector.String(),
		},
	}
}

func NewPromiseOpenedEvent(p *Promise) *types.Event {
	return &types.Event{
		Type: EventTypePromiseOpened,
		Attributes: map[string]string{
			"id":          hex.EncodeToString(p.ID[:]),
			"treasury":    p.Treasury.String(),
			"beneficiary": p.Beneficiary.String(),
			"amount":      formatAmount(p.TotalAmount),
		},
	}
}

func NewPromiseAmountSetEvent(p *Promise, previous *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePromiseAmountSet,
		Attributes: map[string]string{
			"id":          hex.EncodeToString(p.ID[:]),
			"treasury":    p.Treasury.String(),
			"beneficiary": p.Beneficiary.String(),
			"previous":    formatAmount(previous),
			"amount":      formatAmount(p.TotalAmount),
			"nonClaimed":  formatAmount(p.NonClaimed),
		},
	}
}

func NewPromiseClaimedEvent(p *Promise, t *Treasury, destination crypto.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePromiseClaimed,
		Attributes: treasuryTotals(t, map[string]string{
			"id":          hex.EncodeToString(p.ID[:]),
			"beneficiary": p.Beneficiary.String(),
			"destination": destination.String(),
			"amount":      formatAmount(amount),
		}),
	}
}

func NewPromiseClosedEvent(p *Promise, t *Treasury, released *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePromiseClosed,
		Attributes: treasuryTotals(t, map[string]string{
			"id":          hex.EncodeToString(p.ID[:]),
			"beneficiary": p.Beneficiary.String(),
			"released":    formatAmount(released),
		}),
	}
}
