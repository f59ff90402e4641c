package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"promisevault/storage"
)

// Defaults written to a freshly created config file.
const (
	DefaultChainID           = 187
	DefaultRPCAddress        = "127.0.0.1:8645"
	DefaultDataDir           = "./promisevault-data"
	DefaultTreasuryDeposit   = 2_000
	DefaultPromiseDeposit    = 1_000
	DefaultAccountDeposit    = 1_500
	DefaultRateLimitPerSec   = 20
	DefaultRateLimitBurst    = 40
	DefaultReadHeaderTimeout = 5
)

type Config struct {
	ChainID        uint64 `toml:"ChainID"`
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	// ProgramAddress overrides the address treasury authorities are derived
	// from. Empty selects the built-in program address.
	ProgramAddress string `toml:"ProgramAddress,omitempty"`

	Deposits  Deposits  `toml:"deposits"`
	RPC       RPC       `toml:"rpc"`
	Indexer   Indexer   `toml:"indexer"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	Webhook   Webhook   `toml:"webhook"`
	Genesis   Genesis   `toml:"genesis"`
}

// Load reads the configuration at path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for new installations.
func Default() *Config {
	cfg := &Config{
		ChainID:        DefaultChainID,
		RPCAddress:     DefaultRPCAddress,
		DataDir:        DefaultDataDir,
		StorageBackend: storage.BackendLevelDB,
		Deposits: Deposits{
			Treasury:       DefaultTreasuryDeposit,
			Promise:        DefaultPromiseDeposit,
			CustodyAccount: DefaultAccountDeposit,
		},
		RPC: RPC{
			RateLimitPerSec:   DefaultRateLimitPerSec,
			RateLimitBurst:    DefaultRateLimitBurst,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		Indexer: Indexer{Driver: IndexerSQLite},
		Logging: Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Telemetry: Telemetry{
			ServiceName: "promised",
			Insecure:    true,
		},
		Genesis: Genesis{Accounts: []GenesisAccount{}, Mints: []GenesisMint{}},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = storage.BackendLevelDB
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Indexer.Driver) == "" {
		c.Indexer.Driver = IndexerSQLite
	}
	if c.Indexer.Driver == IndexerSQLite && strings.TrimSpace(c.Indexer.DSN) == "" {
		c.Indexer.DSN = filepath.Join(c.DataDir, "events.db")
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = "promised"
	}
	if c.Genesis.Accounts == nil {
		c.Genesis.Accounts = []GenesisAccount{}
	}
	if c.Genesis.Mints == nil {
		c.Genesis.Mints = []GenesisMint{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
