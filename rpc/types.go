package rpc

import (
	"github.com/holiman/uint256"

	"promisevault/core"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
)

// ChainInfoResult describes the ledger a node serves.
type ChainInfoResult struct {
	ChainID  uint64 `json:"chainId"`
	Program  string `json:"program"`
	Sequence uint64 `json:"sequence"`
}

// AccountResult is the native account of an address.
type AccountResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// CustodyAccountResult mirrors custody.Account with decimal amounts.
type CustodyAccountResult struct {
	ID              string `json:"id"`
	Mint            string `json:"mint"`
	Owner           string `json:"owner"`
	Delegate        string `json:"delegate,omitempty"`
	DelegatedAmount string `json:"delegatedAmount"`
	CloseAuthority  string `json:"closeAuthority,omitempty"`
	Balance         string `json:"balance"`
	Deposit         uint64 `json:"deposit"`
	Status          string `json:"status"`
}

type MintResult struct {
	Symbol    string `json:"symbol"`
	Authority string `json:"authority"`
	Supply    string `json:"supply"`
}

// TreasuryResult mirrors treasury.Treasury plus the live custody balance.
type TreasuryResult struct {
	ID              string `json:"id"`
	Admin           string `json:"admin"`
	Custody         string `json:"custody"`
	RentCollector   string `json:"rentCollector"`
	Authority       string `json:"authority"`
	AuthorityBump   uint8  `json:"authorityBump"`
	Mode            string `json:"mode"`
	TotalPromised   string `json:"totalPromised"`
	TotalNonClaimed string `json:"totalNonClaimed"`
	PromiseCount    uint64 `json:"promiseCount"`
	StartTime       int64  `json:"startTime"`
	EndTime         int64  `json:"endTime"`
	Deposit         uint64 `json:"deposit"`
	Status          string `json:"status"`
	CustodyBalance  string `json:"custodyBalance"`
}

type PromiseResult struct {
	Treasury    string `json:"treasury"`
	Beneficiary string `json:"beneficiary"`
	TotalAmount string `json:"totalAmount"`
	NonClaimed  string `json:"nonClaimed"`
	Deposit     uint64 `json:"deposit"`
	Status      string `json:"status"`
}

type AuthorityResult struct {
	Treasury  string `json:"treasury"`
	Authority string `json:"authority"`
	Bump      uint8  `json:"bump"`
}

// ReceiptResult is returned by tx_send.
type ReceiptResult = types.Receipt

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func optionalAddress(a crypto.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func accountResult(addr crypto.Address, acc *types.Account) AccountResult {
	return AccountResult{Address: addr.String(), Nonce: acc.Nonce, Balance: acc.Balance}
}

func custodyAccountResult(acc *custody.Account) CustodyAccountResult {
	return CustodyAccountResult{
		ID:              acc.ID.String(),
		Mint:            acc.Mint,
		Owner:           acc.Owner.String(),
		Delegate:        optionalAddress(acc.Delegate),
		DelegatedAmount: decimal(acc.DelegatedAmount),
		CloseAuthority:  optionalAddress(acc.CloseAuthority),
		Balance:         decimal(acc.Balance),
		Deposit:         acc.Deposit,
		Status:          acc.Status.String(),
	}
}

func mintResult(m *custody.Mint) MintResult {
	return MintResult{Symbol: m.Symbol, Authority: m.Authority.String(), Supply: decimal(m.Supply)}
}

func treasuryResult(summary *core.TreasurySummary) TreasuryResult {
	t := summary.Treasury
	return TreasuryResult{
		ID:              t.ID.String(),
		Admin:           t.Admin.String(),
		Custody:         t.Custody.String(),
		RentCollector:   t.RentCollector.String(),
		Authority:       t.Authority.String(),
		AuthorityBump:   t.AuthorityBump,
		Mode:            t.Mode.String(),
		TotalPromised:   decimal(t.TotalPromised),
		TotalNonClaimed: decimal(t.TotalNonClaimed),
		PromiseCount:    t.PromiseCount,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		Deposit:         t.Deposit,
		Status:          t.Status.String(),
		CustodyBalance:  decimal(summary.CustodyBalance),
	}
}

func promiseResult(p *treasury.Promise) PromiseResult {
	return PromiseResult{
		Treasury:    p.Treasury.String(),
		Beneficiary: p.Beneficiary.String(),
		TotalAmount: decimal(p.TotalAmount),
		NonClaimed:  decimal(p.NonClaimed),
		Deposit:     p.Deposit,
		Status:      p.Status.String(),
	}
}
