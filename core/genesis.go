package core

import (
	"fmt"
	"log/slog"
	"sort"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/storage"
)

// Genesis seeds native balances and token mints.
type Genesis struct {
	Balances map[crypto.Address]uint64
	Mints    map[string]crypto.Address
}

func (g *Genesis) hash() []byte {
	addrs := make([]crypto.Address, 0, len(g.Balances))
	for addr := range g.Balances {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return string(addrs[i][:]) < string(addrs[j][:]) })
	symbols := make([]string, 0, len(g.Mints))
	for symbol := range g.Mints {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var buf []byte
	for _, addr := range addrs {
		buf = append(buf, addr[:]...)
		buf = append(buf, []byte(fmt.Sprintf(":%d;", g.Balances[addr]))...)
	}
	for _, symbol := range symbols {
		authority := g.Mints[symbol]
		buf = append(buf, []byte(symbol+":")...)
		buf = append(buf, authority[:]...)
	}
	return crypto.Keccak256(buf)
}

// ApplyGenesis writes g in one batch. It returns ErrGenesisApplied when the
// database was already initialised.
func (r *Runtime) ApplyGenesis(g *Genesis) error {
	if g == nil {
		return fmt.Errorf("core: nil genesis")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	overlay := storage.NewOverlay(r.db)
	defer overlay.Discard()
	sess := r.newSession(overlay, crypto.Address{}, r.nowFn())

	applied, err := sess.state.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return ErrGenesisApplied
	}
	for addr, balance := range g.Balances {
		if err := sess.state.PutAccount(addr, &types.Account{Balance: balance}); err != nil {
			return err
		}
	}
	for symbol, authority := range g.Mints {
		if _, err := sess.custody.CreateMint(symbol, authority); err != nil {
			return fmt.Errorf("core: genesis mint %s: %w", symbol, err)
		}
	}
	if err := sess.state.MarkGenesis(g.hash()); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return fmt.Errorf("core: commit genesis: %w", err)
	}
	r.logger.Info("genesis applied",
		slog.Int("accounts", len(g.Balances)),
		slog.Int("mints", len(g.Mints)))
	return nil
}
