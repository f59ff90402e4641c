package treasury

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	"promisevault/core/events"
	"promisevault/crypto"
	"promisevault/native/custody"
)

type mockState struct {
	treasuries map[crypto.Address]*Treasury
	promises   map[[32]byte]*Promise
	index      map[crypto.Address][]crypto.Address
	accounts   map[crypto.Address]*custody.Account
	mints      map[string]*custody.Mint
	native     map[crypto.Address]uint64
}

func newMockState() *mockState {
	return &mockState{
		treasuries: make(map[crypto.Address]*Treasury),
		promises:   make(map[[32]byte]*Promise),
		index:      make(map[crypto.Address][]crypto.Address),
		accounts:   make(map[crypto.Address]*custody.Account),
		mints:      make(map[string]*custody.Mint),
		native:     make(map[crypto.Address]uint64),
	}
}

func (m *mockState) TreasuryGet(id crypto.Address) (*Treasury, bool, error) {
	t, ok := m.treasuries[id]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

func (m *mockState) TreasuryPut(t *Treasury) error {
	if t == nil {
		return fmt.Errorf("nil treasury")
	}
	m.treasuries[t.ID] = t.Clone()
	return nil
}

func (m *mockState) PromiseGet(id [32]byte) (*Promise, bool, error) {
	p, ok := m.promises[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) PromisePut(p *Promise) error {
	m.promises[p.ID] = p.Clone()
	return nil
}

func (m *mockState) PromiseIndexAdd(treasury, beneficiary crypto.Address) error {
	m.index[treasury] = append(m.index[treasury], beneficiary)
	return nil
}

func (m *mockState) PromiseIndexRemove(treasury, beneficiary crypto.Address) error {
	list := m.index[treasury]
	for i, b := range list {
		if b == beneficiary {
			m.index[treasury] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockState) PromiseIndex(treasury crypto.Address) ([]crypto.Address, error) {
	return append([]crypto.Address(nil), m.index[treasury]...), nil
}

func (m *mockState) NativeDebit(addr crypto.Address, amount uint64) error {
	if m.native[addr] < amount {
		return fmt.Errorf("insufficient native balance")
	}
	m.native[addr] -= amount
	return nil
}

func (m *mockState) NativeCredit(addr crypto.Address, amount uint64) error {
	m.native[addr] += amount
	return nil
}

func (m *mockState) CustodyAccountGet(id crypto.Address) (*custody.Account, bool, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, false, nil
	}
	return acc.Clone(), true, nil
}

func (m *mockState) CustodyAccountPut(acc *custody.Account) error {
	m.accounts[acc.ID] = acc.Clone()
	return nil
}

func (m *mockState) MintGet(symbol string) (*custody.Mint, bool, error) {
	mint, ok := m.mints[symbol]
	if !ok {
		return nil, false, nil
	}
	return mint.Clone(), true, nil
}

func (m *mockState) MintPut(mint *custody.Mint) error {
	m.mints[mint.Symbol] = mint.Clone()
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func newTestAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

const (
	testTreasuryDeposit = 20
	testPromiseDeposit  = 5
	testAccountDeposit  = 10
	baseTime            = int64(1_700_000_000)
)

type fixture struct {
	engine    *Engine
	custody   *custody.Service
	state     *mockState
	emitter   *capturingEmitter
	program   crypto.Address
	minter    crypto.Address
	admin     crypto.Address
	collector crypto.Address
	now       int64

	treasuryID crypto.Address
	custodyID  crypto.Address
	authority  crypto.Address
	bump       uint8
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine:    NewEngine(),
		custody:   custody.NewService(),
		state:     newMockState(),
		emitter:   &capturingEmitter{},
		program:   newTestAddress(0xEE),
		minter:    newTestAddress(0x01),
		admin:     newTestAddress(0x02),
		collector: newTestAddress(0x03),
		now:       baseTime,
	}
	f.state.native[f.admin] = 1_000
	f.custody.SetState(f.state)
	f.custody.SetProgram(f.program)
	f.custody.SetAccountDeposit(testAccountDeposit)
	f.engine.SetState(f.state)
	f.engine.SetCustody(f.custody)
	f.engine.SetProgram(f.program)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetDeposits(testTreasuryDeposit, testPromiseDeposit)
	f.engine.SetNowFunc(func() int64 { return f.now })
	if _, err := f.custody.CreateMint("USDX", f.minter); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	return f
}

func (f *fixture) openAccount(t *testing.T, id, owner crypto.Address, balance uint64) {
	t.Helper()
	if _, err := f.custody.InitAccount(f.admin, id, "USDX", owner); err != nil {
		t.Fatalf("init account: %v", err)
	}
	if balance > 0 {
		f.custody.SetSigner(f.minter)
		if err := f.custody.MintTo("USDX", id, custody.SignerAuthority(f.minter), uint256.NewInt(balance)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
}

func (f *fixture) prepare(t *testing.T, seed string, balance uint64) {
	t.Helper()
	f.treasuryID = TreasuryID(f.admin, []byte(seed))
	f.custodyID = custody.AccountID(f.admin, []byte(seed))
	authority, bump, err := DeriveAuthority(f.program, f.treasuryID)
	if err != nil {
		t.Fatalf("derive authority: %v", err)
	}
	f.authority, f.bump = authority, bump
	f.openAccount(t, f.custodyID, authority, balance)
}

func (f *fixture) params(mode Mode, start, end int64) OpenTreasuryParams {
	return OpenTreasuryParams{
		Payer:         f.admin,
		ID:            f.treasuryID,
		Admin:         f.admin,
		Custody:       f.custodyID,
		RentCollector: f.collector,
		Mode:          mode,
		StartTime:     start,
		EndTime:       end,
		Bump:          f.bump,
	}
}

func (f *fixture) openTreasury(t *testing.T, mode Mode, balance uint64, start, end int64) {
	t.Helper()
	f.prepare(t, "campaign", balance)
	if _, err := f.engine.OpenTreasury(f.params(mode, start, end)); err != nil {
		t.Fatalf("open treasury: %v", err)
	}
}

func (f *fixture) treasury(t *testing.T) *Treasury {
	t.Helper()
	tr, err := f.engine.Treasury(f.treasuryID)
	if err != nil {
		t.Fatalf("load treasury: %v", err)
	}
	return tr
}

func (f *fixture) balance(t *testing.T, id crypto.Address) uint64 {
	t.Helper()
	acc, err := f.custody.Account(id)
	if err != nil {
		t.Fatalf("account %s: %v", id, err)
	}
	return acc.Balance.Uint64()
}

func (f *fixture) receiver(t *testing.T, owner crypto.Address, fill byte) crypto.Address {
	t.Helper()
	id := newTestAddress(fill)
	f.openAccount(t, id, owner, 0)
	return id
}

func expectTotals(t *testing.T, tr *Treasury, promised, nonClaimed, count uint64) {
	t.Helper()
	if tr.TotalPromised.Uint64() != promised || tr.TotalNonClaimed.Uint64() != nonClaimed || tr.PromiseCount != count {
		t.Fatalf("totals = promised %s, nonClaimed %s, count %d; want %d, %d, %d",
			tr.TotalPromised.Dec(), tr.TotalNonClaimed.Dec(), tr.PromiseCount, promised, nonClaimed, count)
	}
}

func TestFixedPromiseClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime+10, 0)
	beneficiary := newTestAddress(0x10)
	dest := f.receiver(t, beneficiary, 0x11)

	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(300)); err != nil {
		t.Fatalf("open promise: %v", err)
	}
	expectTotals(t, f.treasury(t), 300, 300, 1)

	f.now = baseTime + 5
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); !errors.Is(err, ErrNotYetStarted) {
		t.Fatalf("expected ErrNotYetStarted, got %v", err)
	}
	if f.balance(t, dest) != 0 {
		t.Fatalf("early claim must not transfer")
	}

	f.now = baseTime + 11
	paid, err := f.engine.Claim(beneficiary, f.treasuryID, dest)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Uint64() != 300 || f.balance(t, dest) != 300 || f.balance(t, f.custodyID) != 700 {
		t.Fatalf("unexpected payout %s, dest %d, custody %d", paid.Dec(), f.balance(t, dest), f.balance(t, f.custodyID))
	}
	expectTotals(t, f.treasury(t), 0, 0, 0)
	if f.state.native[f.collector] != testPromiseDeposit {
		t.Fatalf("promise deposit should go to the rent collector, got %d", f.state.native[f.collector])
	}

	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); !errors.Is(err, ErrPromiseClosed) {
		t.Fatalf("second claim must fail with ErrPromiseClosed, got %v", err)
	}
	if f.balance(t, dest) != 300 {
		t.Fatalf("second claim must not pay out")
	}
	p, err := f.engine.Promise(f.treasuryID, beneficiary)
	if err != nil {
		t.Fatalf("promise: %v", err)
	}
	if p.Status != PromiseClaimed {
		t.Fatalf("expected claimed tombstone, got %s", p.Status)
	}
}

func TestOpenPromiseRejectsOvercommit(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, 0)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, newTestAddress(0x10), uint256.NewInt(600)); err != nil {
		t.Fatalf("open first: %v", err)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, newTestAddress(0x11), uint256.NewInt(500)); !errors.Is(err, ErrInsufficientPromiseFunds) {
		t.Fatalf("expected ErrInsufficientPromiseFunds, got %v", err)
	}
	expectTotals(t, f.treasury(t), 600, 600, 1)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, newTestAddress(0x11), uint256.NewInt(400)); err != nil {
		t.Fatalf("exact fit should open: %v", err)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, newTestAddress(0x11), uint256.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("fixed promises need an amount, got %v", err)
	}
}

func TestOpenPromiseDuplicates(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); !errors.Is(err, ErrPromiseExists) {
		t.Fatalf("expected ErrPromiseExists, got %v", err)
	}
	if err := f.engine.ClosePromise(f.admin, f.treasuryID, beneficiary); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); !errors.Is(err, ErrPromiseClosed) {
		t.Fatalf("expected ErrPromiseClosed, got %v", err)
	}
}

func TestAdjustablePromiseResizing(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 1_000, baseTime+100, 0)
	beneficiary := newTestAddress(0x10)

	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, new(uint256.Int)); err != nil {
		t.Fatalf("open at zero: %v", err)
	}
	expectTotals(t, f.treasury(t), 0, 0, 1)
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(400)); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(100)); err != nil {
		t.Fatalf("shrink before start: %v", err)
	}
	expectTotals(t, f.treasury(t), 100, 100, 1)

	f.now = baseTime + 100
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(50)); !errors.Is(err, ErrWithdrawalAfterStartNotAllowed) {
		t.Fatalf("expected ErrWithdrawalAfterStartNotAllowed, got %v", err)
	}
	expectTotals(t, f.treasury(t), 100, 100, 1)

	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(1_001)); !errors.Is(err, ErrInsufficientPromiseFunds) {
		t.Fatalf("expected ErrInsufficientPromiseFunds, got %v", err)
	}
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(200)); err != nil {
		t.Fatalf("grow after start: %v", err)
	}
	expectTotals(t, f.treasury(t), 200, 200, 1)
}

func TestAdjustableClaimAndTopUp(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	dest := f.receiver(t, beneficiary, 0x11)

	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(250)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectTotals(t, f.treasury(t), 250, 0, 1)
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
	if f.balance(t, dest) != 250 {
		t.Fatalf("no double payout, dest has %d", f.balance(t, dest))
	}

	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(300)); err != nil {
		t.Fatalf("top up: %v", err)
	}
	p, _ := f.engine.Promise(f.treasuryID, beneficiary)
	if p.NonClaimed.Uint64() != 50 {
		t.Fatalf("top up should leave 50 outstanding, got %s", p.NonClaimed.Dec())
	}
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); err != nil {
		t.Fatalf("second claim after top up: %v", err)
	}
	if f.balance(t, dest) != 300 || f.balance(t, f.custodyID) != 700 {
		t.Fatalf("dest %d custody %d", f.balance(t, dest), f.balance(t, f.custodyID))
	}
	expectTotals(t, f.treasury(t), 300, 0, 1)
}

func TestShrinkBelowClaimedIsRejected(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	dest := f.receiver(t, beneficiary, 0x11)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(300)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Moving the gate back into the future re-enables shrinking, but never
	// below what was already paid out.
	if err := f.engine.SetStartTime(f.admin, f.treasuryID, baseTime+1_000); err != nil {
		t.Fatalf("set start time: %v", err)
	}
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(299)); !errors.Is(err, ErrClaimedAmountExceeded) {
		t.Fatalf("expected ErrClaimedAmountExceeded, got %v", err)
	}
	if Classify(ErrClaimedAmountExceeded) != CategoryInvariant {
		t.Fatalf("claimed-amount guard must classify as invariant")
	}
}

func TestCloseTreasuryGating(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, baseTime+50)
	beneficiary := newTestAddress(0x10)
	sweep := f.receiver(t, f.admin, 0x20)

	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(100)); err != nil {
		t.Fatalf("open promise: %v", err)
	}
	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, sweep); !errors.Is(err, ErrTooEarlyToClose) {
		t.Fatalf("expected ErrTooEarlyToClose, got %v", err)
	}
	if err := f.engine.ClosePromise(f.admin, f.treasuryID, beneficiary); !errors.Is(err, ErrTooEarlyToClose) {
		t.Fatalf("expected ErrTooEarlyToClose for promise, got %v", err)
	}

	f.now = baseTime + 50
	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, sweep); !errors.Is(err, ErrClosingTreasuryWithPromises) {
		t.Fatalf("expected ErrClosingTreasuryWithPromises, got %v", err)
	}
	if err := f.engine.ClosePromise(f.admin, f.treasuryID, beneficiary); err != nil {
		t.Fatalf("close promise: %v", err)
	}
	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, f.custodyID); !errors.Is(err, ErrCloseTargetIsSource) {
		t.Fatalf("expected ErrCloseTargetIsSource, got %v", err)
	}
	if f.balance(t, f.custodyID) != 1_000 {
		t.Fatalf("failed closes must leave custody intact")
	}

	collectorBefore := f.state.native[f.collector]
	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, sweep); err != nil {
		t.Fatalf("close treasury: %v", err)
	}
	if f.balance(t, sweep) != 1_000 {
		t.Fatalf("sweep received %d", f.balance(t, sweep))
	}
	if _, err := f.custody.Account(f.custodyID); !errors.Is(err, custody.ErrAccountNotFound) {
		t.Fatalf("custody account should be closed, got %v", err)
	}
	if got := f.state.native[f.collector] - collectorBefore; got != testAccountDeposit+testTreasuryDeposit {
		t.Fatalf("rent collector received %d, want %d", got, testAccountDeposit+testTreasuryDeposit)
	}
	tr := f.treasury(t)
	if tr.Status != TreasuryClosed || !tr.Admin.IsZero() {
		t.Fatalf("expected zeroed tombstone, got %+v", tr)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(1)); !errors.Is(err, ErrTreasuryClosed) {
		t.Fatalf("closed treasury must refuse promises, got %v", err)
	}
	if _, err := f.engine.OpenTreasury(f.params(ModeFixed, baseTime, 0)); !errors.Is(err, ErrTreasuryExists) {
		t.Fatalf("closed treasury must not reopen, got %v", err)
	}
}

func TestOpenThenCloseRestoresTotals(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 1_000, baseTime, 0)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, newTestAddress(0x10), uint256.NewInt(120)); err != nil {
		t.Fatalf("open baseline: %v", err)
	}
	before := f.treasury(t)
	beneficiary := newTestAddress(0x11)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(333)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.engine.ClosePromise(f.admin, f.treasuryID, beneficiary); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectTotals(t, f.treasury(t), before.TotalPromised.Uint64(), before.TotalNonClaimed.Uint64(), before.PromiseCount)

	live, err := f.engine.Promises(f.treasuryID)
	if err != nil {
		t.Fatalf("promises: %v", err)
	}
	if len(live) != 1 || live[0].Beneficiary != newTestAddress(0x10) {
		t.Fatalf("expected only the baseline promise to remain, got %d", len(live))
	}
}

func TestOpenTreasuryCustodyPreconditions(t *testing.T) {
	t.Run("non canonical bump", func(t *testing.T) {
		f := newFixture(t)
		f.prepare(t, "campaign", 0)
		p := f.params(ModeFixed, baseTime, 0)
		p.Bump = f.bump - 1
		if _, err := f.engine.OpenTreasury(p); !errors.Is(err, ErrInvalidAuthorityDerivation) {
			t.Fatalf("expected ErrInvalidAuthorityDerivation, got %v", err)
		}
	})
	t.Run("owner mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.prepare(t, "campaign", 0)
		other := newTestAddress(0x30)
		f.openAccount(t, other, f.admin, 0)
		p := f.params(ModeFixed, baseTime, 0)
		p.Custody = other
		if _, err := f.engine.OpenTreasury(p); !errors.Is(err, ErrAuthorityMismatch) {
			t.Fatalf("expected ErrAuthorityMismatch, got %v", err)
		}
	})
	t.Run("delegate present", func(t *testing.T) {
		f := newFixture(t)
		f.prepare(t, "campaign", 0)
		seeds := authoritySeeds(f.treasuryID)
		if err := f.custody.Approve(f.custodyID, custody.DerivedAuthority(f.program, seeds, f.bump), newTestAddress(0x31), uint256.NewInt(1)); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if _, err := f.engine.OpenTreasury(f.params(ModeFixed, baseTime, 0)); !errors.Is(err, ErrDelegationNotAllowed) {
			t.Fatalf("expected ErrDelegationNotAllowed, got %v", err)
		}
	})
	t.Run("close authority present", func(t *testing.T) {
		f := newFixture(t)
		f.prepare(t, "campaign", 0)
		seeds := authoritySeeds(f.treasuryID)
		if err := f.custody.SetCloseAuthority(f.custodyID, custody.DerivedAuthority(f.program, seeds, f.bump), newTestAddress(0x32)); err != nil {
			t.Fatalf("set close authority: %v", err)
		}
		if _, err := f.engine.OpenTreasury(f.params(ModeFixed, baseTime, 0)); !errors.Is(err, ErrCloseAuthorityNotAllowed) {
			t.Fatalf("expected ErrCloseAuthorityNotAllowed, got %v", err)
		}
	})
	t.Run("negative time", func(t *testing.T) {
		f := newFixture(t)
		f.prepare(t, "campaign", 0)
		if _, err := f.engine.OpenTreasury(f.params(ModeFixed, -1, 0)); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("expected ErrInvalidTime, got %v", err)
		}
	})
}

func TestAdministratorOnlyOperations(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 1_000, baseTime, 0)
	intruder := newTestAddress(0x40)
	beneficiary := newTestAddress(0x10)

	if _, err := f.engine.OpenPromise(intruder, f.treasuryID, beneficiary, uint256.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetStartTime(intruder, f.treasuryID, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	newAdmin := newTestAddress(0x41)
	if err := f.engine.SetAdministrator(f.admin, f.treasuryID, newAdmin); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("previous admin must lose control, got %v", err)
	}
	f.state.native[newAdmin] = 100
	if _, err := f.engine.OpenPromise(newAdmin, f.treasuryID, beneficiary, uint256.NewInt(1)); err != nil {
		t.Fatalf("new admin open: %v", err)
	}
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(2)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.Claim(intruder, f.treasuryID, intruder); !errors.Is(err, ErrPromiseNotFound) {
		t.Fatalf("non-beneficiary claim must find nothing, got %v", err)
	}
}

func TestFixedModeRejectsResize(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.engine.SetPromiseAmount(f.admin, f.treasuryID, beneficiary, uint256.NewInt(20)); !errors.Is(err, ErrAmountNotAdjustable) {
		t.Fatalf("expected ErrAmountNotAdjustable, got %v", err)
	}
}

func TestClaimTargetIsSource(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, f.custodyID); !errors.Is(err, ErrClaimTargetIsSource) {
		t.Fatalf("expected ErrClaimTargetIsSource, got %v", err)
	}
	expectTotals(t, f.treasury(t), 10, 10, 1)
}

func TestEventsEmitted(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeFixed, 1_000, baseTime, 0)
	beneficiary := newTestAddress(0x10)
	dest := f.receiver(t, beneficiary, 0x11)
	if _, err := f.engine.OpenPromise(f.admin, f.treasuryID, beneficiary, uint256.NewInt(10)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.Claim(beneficiary, f.treasuryID, dest); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got := f.emitter.types()
	want := []string{EventTypeTreasuryOpened, EventTypePromiseOpened, EventTypePromiseClaimed}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{nil, CategoryNone},
		{ErrUnauthorized, CategoryAuthorization},
		{fmt.Errorf("wrapped: %w", ErrInvalidAuthorityDerivation), CategoryAuthorization},
		{custody.ErrUnauthorizedAuthority, CategoryAuthorization},
		{ErrNotYetStarted, CategoryTiming},
		{ErrTooEarlyToClose, CategoryTiming},
		{ErrInsufficientPromiseFunds, CategoryAccounting},
		{ErrWithdrawalAfterStartNotAllowed, CategoryAccounting},
		{ErrSolvencyViolated, CategoryInvariant},
		{fmt.Errorf("treasury: transfer from custody: %w", custody.ErrInsufficientBalance), CategoryExternal},
		{ErrTreasuryNotFound, CategoryNotFound},
		{ErrCloseTargetIsSource, CategoryInvalid},
		{errors.New("disk on fire"), CategoryInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestParseStringForms(t *testing.T) {
	for _, mode := range []Mode{ModeFixed, ModeAdjustable} {
		got, ok := ParseMode(mode.String())
		if !ok || got != mode {
			t.Fatalf("ParseMode(%q) = %v, %v", mode.String(), got, ok)
		}
	}
	if _, ok := ParseMode("linear"); ok {
		t.Fatalf("unexpected mode accepted")
	}
	for _, status := range []PromiseStatus{PromiseUnopened, PromiseOpen, PromiseClaimed, PromiseClosed} {
		got, ok := ParsePromiseStatus(status.String())
		if !ok || got != status {
			t.Fatalf("ParsePromiseStatus(%q) = %v, %v", status.String(), got, ok)
		}
	}
	if _, ok := ParsePromiseStatus("unknown"); ok {
		t.Fatalf("unknown status accepted")
	}
}

func TestCloseTreasuryValidatesDestinationWhenEmpty(t *testing.T) {
	f := newFixture(t)
	f.openTreasury(t, ModeAdjustable, 0, baseTime, 0)

	if _, err := f.custody.CreateMint("EURX", f.minter); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	foreign := newTestAddress(0x30)
	if _, err := f.custody.InitAccount(f.admin, foreign, "EURX", f.admin); err != nil {
		t.Fatalf("init foreign account: %v", err)
	}

	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, newTestAddress(0x31)); !errors.Is(err, custody.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for a missing destination, got %v", err)
	}
	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, foreign); !errors.Is(err, custody.ErrMintMismatch) {
		t.Fatalf("expected ErrMintMismatch for a foreign mint, got %v", err)
	}
	if tr := f.treasury(t); tr.Status != TreasuryOpen {
		t.Fatalf("rejected closes must leave the treasury open, got %s", tr.Status)
	}
	if _, err := f.custody.Account(f.custodyID); err != nil {
		t.Fatalf("custody account should still be open: %v", err)
	}

	if err := f.engine.CloseTreasury(f.admin, f.treasuryID, f.receiver(t, f.admin, 0x32)); err != nil {
		t.Fatalf("close into a matching account: %v", err)
	}
}
