package treasury

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"promisevault/core/events"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/internal/safemath"
)

type engineState interface {
	TreasuryGet(id crypto.Address) (*Treasury, bool, error)
	TreasuryPut(t *Treasury) error
	PromiseGet(id [32]byte) (*Promise, bool, error)
	PromisePut(p *Promise) error
	PromiseIndexAdd(treasury, beneficiary crypto.Address) error
	PromiseIndexRemove(treasury, beneficiary crypto.Address) error
	PromiseIndex(treasury crypto.Address) ([]crypto.Address, error)
	NativeDebit(addr crypto.Address, amount uint64) error
	NativeCredit(addr crypto.Address, amount uint64) error
}

type treasuryEvent struct {
	evt *types.Event
}

func (e treasuryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e treasuryEvent) Event() *types.Event { return e.evt }

// Engine runs the treasury and promise state machines. It is not safe for
// concurrent use; the ledger runtime serialises transactions.
type Engine struct {
	state           engineState
	custody         custodyService
	emitter         events.Emitter
	program         crypto.Address
	treasuryDeposit uint64
	promiseDeposit  uint64
	nowFn           func() int64
}

// NewEngine creates a treasury engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the token custody service used for settlement.
func (e *Engine) SetCustody(svc custodyService) { e.custody = svc }

// SetProgram sets the program address treasury authorities derive from.
func (e *Engine) SetProgram(program crypto.Address) { e.program = program }

// Program returns the configured program address.
func (e *Engine) Program() crypto.Address { return e.program }

// SetDeposits configures the native storage deposits charged for treasury
// and promise records.
func (e *Engine) SetDeposits(treasury, promise uint64) {
	e.treasuryDeposit = treasury
	e.promiseDeposit = promise
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(treasuryEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadTreasury(id crypto.Address) (*Treasury, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	t, ok, err := e.state.TreasuryGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || t.Status == TreasuryUnopened {
		return nil, fmt.Errorf("%w: %s", ErrTreasuryNotFound, id)
	}
	if t.Status == TreasuryClosed {
		return nil, fmt.Errorf("%w: %s", ErrTreasuryClosed, id)
	}
	return t, nil
}

func (e *Engine) loadAdministered(caller, id crypto.Address) (*Treasury, error) {
	t, err := e.loadTreasury(id)
	if err != nil {
		return nil, err
	}
	if caller != t.Admin {
		return nil, fmt.Errorf("%w: %s is not the administrator", ErrUnauthorized, caller)
	}
	return t, nil
}

// Treasury returns a copy of the treasury id, whatever its status.
func (e *Engine) Treasury(id crypto.Address) (*Treasury, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	t, ok, err := e.state.TreasuryGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTreasuryNotFound, id)
	}
	return t.Clone(), nil
}

// OpenTreasuryParams describes a new treasury.
type OpenTreasuryParams struct {
	Payer         crypto.Address
	ID            crypto.Address
	Admin         crypto.Address
	Custody       crypto.Address
	RentCollector crypto.Address // defaults to Payer
	Mode          Mode
	StartTime     int64
	EndTime       int64 // zero disables the closure gate
	Bump          uint8
}

// OpenTreasury opens a treasury over an existing custody account. The custody
// account must be controlled by the treasury's canonical derived authority
// and carry neither a delegate nor a close authority.
func (e *Engine) OpenTreasury(p OpenTreasuryParams) (*Treasury, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if existing, ok, err := e.state.TreasuryGet(p.ID); err != nil {
		return nil, err
	} else if ok && existing.Status != TreasuryUnopened {
		return nil, fmt.Errorf("%w: %s", ErrTreasuryExists, p.ID)
	}
	if p.Admin.IsZero() || p.Custody.IsZero() {
		return nil, ErrInvalidAddress
	}
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, p.Mode)
	}
	if p.StartTime < 0 || p.EndTime < 0 {
		return nil, fmt.Errorf("%w: negative timestamp", ErrInvalidTime)
	}
	authority, err := VerifyAuthority(e.program, p.ID, p.Bump)
	if err != nil {
		return nil, err
	}
	acc, err := e.custody.Account(p.Custody)
	if err != nil {
		return nil, fmt.Errorf("treasury: load custody account: %w", err)
	}
	if acc.Owner != authority {
		return nil, ErrAuthorityMismatch
	}
	if acc.HasDelegate() {
		return nil, ErrDelegationNotAllowed
	}
	if acc.HasCloseAuthority() {
		return nil, ErrCloseAuthorityNotAllowed
	}
	rentCollector := p.RentCollector
	if rentCollector.IsZero() {
		rentCollector = p.Payer
	}
	if e.treasuryDeposit > 0 {
		if err := e.state.NativeDebit(p.Payer, e.treasuryDeposit); err != nil {
			return nil, fmt.Errorf("treasury: fund treasury deposit: %w", err)
		}
	}
	t := &Treasury{
		ID:              p.ID,
		Admin:           p.Admin,
		Custody:         p.Custody,
		RentCollector:   rentCollector,
		Authority:       authority,
		AuthorityBump:   p.Bump,
		Mode:            p.Mode,
		TotalPromised:   new(uint256.Int),
		TotalNonClaimed: new(uint256.Int),
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		Deposit:         e.treasuryDeposit,
		Status:          TreasuryOpen,
	}
	if err := e.state.TreasuryPut(t); err != nil {
		return nil, err
	}
	e.emit(NewTreasuryOpenedEvent(t))
	return t.Clone(), nil
}

// SetAdministrator hands the treasury to newAdmin.
func (e *Engine) SetAdministrator(caller, id, newAdmin crypto.Address) error {
	t, err := e.loadAdministered(caller, id)
	if err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return ErrInvalidAddress
	}
	previous := t.Admin
	t.Admin = newAdmin
	if err := e.state.TreasuryPut(t); err != nil {
		return err
	}
	e.emit(NewAdminChangedEvent(t, previous))
	return nil
}

// SetStartTime moves the activation gate.
func (e *Engine) SetStartTime(caller, id crypto.Address, startTime int64) error {
	t, err := e.loadAdministered(caller, id)
	if err != nil {
		return err
	}
	if startTime < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidTime)
	}
	t.StartTime = startTime
	if err := e.state.TreasuryPut(t); err != nil {
		return err
	}
	e.emit(NewStartTimeChangedEvent(t))
	return nil
}

// CloseTreasury sweeps the custody balance to destination, closes the custody
// account and retires the treasury. It requires that no promise remains.
func (e *Engine) CloseTreasury(caller, id, destination crypto.Address) error {
	t, err := e.loadAdministered(caller, id)
	if err != nil {
		return err
	}
	if !t.Closable(e.now()) {
		return ErrTooEarlyToClose
	}
	if t.PromiseCount != 0 || !t.TotalPromised.IsZero() {
		return fmt.Errorf("%w: %d promises, %s promised", ErrClosingTreasuryWithPromises, t.PromiseCount, t.TotalPromised.Dec())
	}
	if destination == t.Custody {
		return ErrCloseTargetIsSource
	}
	if err := e.checkDestination(t, destination); err != nil {
		return err
	}
	balance, err := e.custodyBalance(t)
	if err != nil {
		return err
	}
	swept := safemath.Clone(balance)
	if err := e.payOut(t, destination, swept); err != nil {
		return err
	}
	if err := e.releaseCustody(t); err != nil {
		return err
	}
	if t.Deposit > 0 {
		if err := e.state.NativeCredit(t.RentCollector, t.Deposit); err != nil {
			return err
		}
	}
	tombstone := &Treasury{
		ID:              t.ID,
		TotalPromised:   new(uint256.Int),
		TotalNonClaimed: new(uint256.Int),
		Status:          TreasuryClosed,
	}
	if err := e.state.TreasuryPut(tombstone); err != nil {
		return err
	}
	e.emit(NewTreasuryClosedEvent(t, destination, swept))
	return nil
}
