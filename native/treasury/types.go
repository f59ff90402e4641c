package treasury

import (
	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/internal/safemath"
)

// Mode selects how promises of a treasury behave.
type Mode uint8

const (
	// ModeFixed promises carry a fixed amount set at open; a claim pays it out
	// and destroys the record.
	ModeFixed Mode = iota
	// ModeAdjustable promises may open at zero and be resized by the
	// administrator. A claim zeroes the outstanding amount and keeps the record
	// so it can be topped up again.
	ModeAdjustable
)

func (m Mode) Valid() bool {
	switch m {
	case ModeFixed, ModeAdjustable:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	switch m {
	case ModeFixed:
		return "fixed"
	case ModeAdjustable:
		return "adjustable"
	default:
		return "unknown"
	}
}

// ParseMode accepts the String form of a mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "fixed":
		return ModeFixed, true
	case "adjustable":
		return ModeAdjustable, true
	default:
		return 0, false
	}
}

type TreasuryStatus uint8

const (
	TreasuryUnopened TreasuryStatus = iota
	TreasuryOpen
	TreasuryClosed
)

func (s TreasuryStatus) Valid() bool {
	switch s {
	case TreasuryUnopened, TreasuryOpen, TreasuryClosed:
		return true
	default:
		return false
	}
}

func (s TreasuryStatus) String() string {
	switch s {
	case TreasuryUnopened:
		return "unopened"
	case TreasuryOpen:
		return "open"
	case TreasuryClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type PromiseStatus uint8

const (
	PromiseUnopened PromiseStatus = iota
	PromiseOpen
	PromiseClaimed
	PromiseClosed
)

func (s PromiseStatus) Valid() bool {
	switch s {
	case PromiseUnopened, PromiseOpen, PromiseClaimed, PromiseClosed:
		return true
	default:
		return false
	}
}

func (s PromiseStatus) String() string {
	switch s {
	case PromiseUnopened:
		return "unopened"
	case PromiseOpen:
		return "open"
	case PromiseClaimed:
		return "claimed"
	case PromiseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParsePromiseStatus accepts the String form of a promise status.
func ParsePromiseStatus(s string) (PromiseStatus, bool) {
	for _, status := range []PromiseStatus{PromiseUnopened, PromiseOpen, PromiseClaimed, PromiseClosed} {
		if status.String() == s {
			return status, true
		}
	}
	return 0, false
}

// Treasury is the pool record of one distribution campaign. The running
// totals are only ever changed in the same transaction as the promise
// mutation that causes the change.
type Treasury struct {
	ID              crypto.Address
	Admin           crypto.Address
	Custody         crypto.Address
	RentCollector   crypto.Address
	Authority       crypto.Address
	AuthorityBump   uint8
	Mode            Mode
	TotalPromised   *uint256.Int
	TotalNonClaimed *uint256.Int
	PromiseCount    uint64
	StartTime       int64
	EndTime         int64
	Deposit         uint64
	Status          TreasuryStatus
}

// Clone returns a deep copy of the treasury.
func (t *Treasury) Clone() *Treasury {
	if t == nil {
		return nil
	}
	clone := *t
	clone.TotalPromised = safemath.Clone(t.TotalPromised)
	clone.TotalNonClaimed = safemath.Clone(t.TotalNonClaimed)
	return &clone
}

// Started reports whether claims are allowed at now.
func (t *Treasury) Started(now int64) bool { return now >= t.StartTime }

// Closable reports whether the closure gate has passed at now. An EndTime of
// zero disables the gate.
func (t *Treasury) Closable(now int64) bool { return t.EndTime == 0 || now >= t.EndTime }

// Promise is the entitlement of one beneficiary against one treasury.
type Promise struct {
	ID          [32]byte
	Treasury    crypto.Address
	Beneficiary crypto.Address
	TotalAmount *uint256.Int
	NonClaimed  *uint256.Int
	Deposit     uint64
	Status      PromiseStatus
}

func (p *Promise) Clone() *Promise {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalAmount = safemath.Clone(p.TotalAmount)
	clone.NonClaimed = safemath.Clone(p.NonClaimed)
	return &clone
}

// Claimed returns the amount already paid out.
func (p *Promise) Claimed() (*uint256.Int, error) {
	return safemath.Sub(p.TotalAmount, p.NonClaimed)
}

// PartiallyClaimed reports whether some but not all of the entitlement has
// been paid out.
func (p *Promise) PartiallyClaimed() bool {
	return p.Status == PromiseOpen && !p.NonClaimed.IsZero() && p.NonClaimed.Lt(p.TotalAmount)
}

var promiseSeed = []byte("promise")

// PromiseID derives the record key of the promise of beneficiary in
// treasury. There is at most one promise per pair.
func PromiseID(treasury, beneficiary crypto.Address) [32]byte {
	var id [32]byte
	copy(id[:], crypto.Keccak256(promiseSeed, treasury[:], beneficiary[:]))
	return id
}

// TreasuryID derives the record address of a treasury opened by creator
// with seed.
func TreasuryID(creator crypto.Address, seed []byte) crypto.Address {
	return crypto.DeriveRecordAddress("treasury-record", creator, seed)
}
