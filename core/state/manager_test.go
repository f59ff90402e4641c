package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
	"promisevault/storage"
)

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[len(a)-1] = b
	return a
}

func TestTreasuryRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	id := addr(1)

	_, ok, err := m.TreasuryGet(id)
	require.NoError(t, err)
	assert.False(t, ok)

	record := &treasury.Treasury{
		ID:              id,
		Admin:           addr(2),
		Custody:         addr(3),
		RentCollector:   addr(4),
		Authority:       addr(5),
		AuthorityBump:   254,
		Mode:            treasury.ModeAdjustable,
		TotalPromised:   uint256.NewInt(500),
		TotalNonClaimed: uint256.NewInt(200),
		PromiseCount:    3,
		StartTime:       1_700_000_000,
		EndTime:         1_800_000_000,
		Deposit:         42,
		Status:          treasury.TreasuryOpen,
	}
	require.NoError(t, m.TreasuryPut(record))

	got, ok, err := m.TreasuryGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Admin, got.Admin)
	assert.Equal(t, record.Mode, got.Mode)
	assert.Equal(t, uint64(500), got.TotalPromised.Uint64())
	assert.Equal(t, uint64(200), got.TotalNonClaimed.Uint64())
	assert.Equal(t, record.StartTime, got.StartTime)
	assert.Equal(t, record.EndTime, got.EndTime)
	assert.Equal(t, record.AuthorityBump, got.AuthorityBump)
	assert.Equal(t, treasury.TreasuryOpen, got.Status)
}

func TestTreasuryPutRejectsNegativeTimes(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	err := m.TreasuryPut(&treasury.Treasury{ID: addr(1), StartTime: -1, Status: treasury.TreasuryOpen})
	require.Error(t, err)
}

func TestPromiseRoundTripAndIndex(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	tid := addr(9)
	beneficiaries := []crypto.Address{addr(3), addr(1), addr(2)}
	for _, b := range beneficiaries {
		p := &treasury.Promise{
			ID:          treasury.PromiseID(tid, b),
			Treasury:    tid,
			Beneficiary: b,
			TotalAmount: uint256.NewInt(10),
			NonClaimed:  uint256.NewInt(10),
			Deposit:     1,
			Status:      treasury.PromiseOpen,
		}
		require.NoError(t, m.PromisePut(p))
		require.NoError(t, m.PromiseIndexAdd(tid, b))
	}
	require.NoError(t, m.PromiseIndexAdd(tid, addr(3)))

	index, err := m.PromiseIndex(tid)
	require.NoError(t, err)
	assert.Equal(t, beneficiaries, index, "index keeps open order without duplicates")

	require.NoError(t, m.PromiseIndexRemove(tid, addr(1)))
	index, err = m.PromiseIndex(tid)
	require.NoError(t, err)
	assert.Equal(t, []crypto.Address{addr(3), addr(2)}, index)

	got, ok, err := m.PromiseGet(treasury.PromiseID(tid, addr(2)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, addr(2), got.Beneficiary)
	assert.Equal(t, uint64(10), got.NonClaimed.Uint64())

	empty, err := m.PromiseIndex(addr(77))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCustodyRecords(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	acc := &custody.Account{
		ID:              addr(1),
		Mint:            "USDC",
		Owner:           addr(2),
		Delegate:        addr(3),
		DelegatedAmount: uint256.NewInt(7),
		Balance:         uint256.NewInt(100),
		Deposit:         5,
		Status:          custody.AccountOpen,
	}
	require.NoError(t, m.CustodyAccountPut(acc))
	got, ok, err := m.CustodyAccountGet(acc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "USDC", got.Mint)
	assert.Equal(t, uint64(100), got.Balance.Uint64())
	assert.Equal(t, uint64(7), got.DelegatedAmount.Uint64())

	mint := &custody.Mint{Symbol: "USDC", Authority: addr(8), Supply: uint256.NewInt(1000)}
	require.NoError(t, m.MintPut(mint))
	gotMint, ok, err := m.MintGet("USDC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, addr(8), gotMint.Authority)
	assert.Equal(t, uint64(1000), gotMint.Supply.Uint64())
}

func TestNativeBalances(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.NativeCredit(addr(1), 100))
	require.NoError(t, m.NativeTransfer(addr(1), addr(2), 40))

	a, err := m.GetAccount(addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), a.Balance)
	b, err := m.GetAccount(addr(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(40), b.Balance)

	err = m.NativeDebit(addr(2), 41)
	assert.True(t, errors.Is(err, ErrInsufficientNativeBalance))
}

func TestOverlayDiscardLeavesBaseUntouched(t *testing.T) {
	base := storage.NewMemDB()
	ov := storage.NewOverlay(base)
	m := NewManager(ov)
	require.NoError(t, m.NativeCredit(addr(1), 10))
	require.NoError(t, m.SetSequence(4))
	ov.Discard()
	assert.Equal(t, 0, base.Len())

	ov = storage.NewOverlay(base)
	m = NewManager(ov)
	require.NoError(t, m.SetSequence(5))
	require.NoError(t, ov.Commit())

	seq, err := NewManager(base).Sequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seq)
}

func TestGenesisMarker(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	applied, err := m.GenesisApplied()
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, m.MarkGenesis([]byte{0xaa}))
	applied, err = m.GenesisApplied()
	require.NoError(t, err)
	assert.True(t, applied)
}
