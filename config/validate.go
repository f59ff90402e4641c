package config

import (
	"fmt"
	"strings"

	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/storage"
)

// ValidateConfig checks a loaded configuration for values the node cannot run
// with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be non-zero")
	}
	switch cfg.StorageBackend {
	case storage.BackendLevelDB, storage.BackendPebble, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("config: unknown StorageBackend %q", cfg.StorageBackend)
	}
	if strings.TrimSpace(cfg.ProgramAddress) != "" {
		if _, err := crypto.ParseAddress(cfg.ProgramAddress); err != nil {
			return fmt.Errorf("config: ProgramAddress: %w", err)
		}
	}
	if cfg.RPC.RateLimitPerSec < 0 || cfg.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.RPC.RateLimitPerSec > 0 && cfg.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: rate_limit_burst must be positive when rate limiting is enabled")
	}
	switch cfg.Indexer.Driver {
	case IndexerSQLite, IndexerDisabled:
	case IndexerPostgres:
		if strings.TrimSpace(cfg.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: postgres requires a dsn")
		}
	default:
		return fmt.Errorf("indexer: unknown driver %q", cfg.Indexer.Driver)
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	if strings.TrimSpace(cfg.Webhook.Endpoint) != "" && strings.TrimSpace(cfg.Webhook.Secret) == "" {
		return fmt.Errorf("webhook: secret required when endpoint is set")
	}
	if _, err := cfg.Genesis.Parse(); err != nil {
		return err
	}
	return nil
}

// ParsedGenesis holds genesis entries with decoded addresses.
type ParsedGenesis struct {
	Balances map[crypto.Address]uint64
	Mints    map[string]crypto.Address
}

// Parse decodes and checks every genesis entry. Duplicate addresses or
// symbols are rejected.
func (g Genesis) Parse() (*ParsedGenesis, error) {
	out := &ParsedGenesis{
		Balances: make(map[crypto.Address]uint64, len(g.Accounts)),
		Mints:    make(map[string]crypto.Address, len(g.Mints)),
	}
	for i, acc := range g.Accounts {
		addr, err := crypto.ParseAddress(acc.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: accounts[%d]: %w", i, err)
		}
		if _, dup := out.Balances[addr]; dup {
			return nil, fmt.Errorf("genesis: duplicate account %s", addr)
		}
		out.Balances[addr] = acc.Balance
	}
	for i, mint := range g.Mints {
		symbol, err := custody.NormalizeSymbol(mint.Symbol)
		if err != nil {
			return nil, fmt.Errorf("genesis: mints[%d]: %w", i, err)
		}
		authority, err := crypto.ParseAddress(mint.Authority)
		if err != nil {
			return nil, fmt.Errorf("genesis: mints[%d] authority: %w", i, err)
		}
		if _, dup := out.Mints[symbol]; dup {
			return nil, fmt.Errorf("genesis: duplicate mint %s", symbol)
		}
		out.Mints[symbol] = authority
	}
	return out, nil
}
