package config

// Indexer drivers.
const (
	IndexerSQLite   = "sqlite"
	IndexerPostgres = "postgres"
	IndexerDisabled = "none"
)

// Deposits are the native storage deposits charged when records are opened
// and refunded when they are closed.
type Deposits struct {
	Treasury       uint64 `toml:"treasury"`
	Promise        uint64 `toml:"promise"`
	CustodyAccount uint64 `toml:"custody_account"`
}

type RPC struct {
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
	RateLimitBurst  int     `toml:"rate_limit_burst"`
	// ReadHeaderTimeout is in seconds.
	ReadHeaderTimeout int      `toml:"read_header_timeout"`
	TrustedProxies    []string `toml:"trusted_proxies,omitempty"`
}

type Indexer struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn,omitempty"`
}

type Logging struct {
	Env        string `toml:"env,omitempty"`
	Level      string `toml:"level"`
	File       string `toml:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type Telemetry struct {
	ServiceName string  `toml:"service_name"`
	Endpoint    string  `toml:"endpoint,omitempty"`
	Headers     string  `toml:"headers,omitempty"`
	Insecure    bool    `toml:"insecure"`
	Traces      bool    `toml:"traces"`
	Metrics     bool    `toml:"metrics"`
	SampleRatio float64 `toml:"sample_ratio,omitempty"`
}

// Genesis seeds native balances and token mints the first time a data
// directory is opened.
type Genesis struct {
	Accounts []GenesisAccount `toml:"accounts"`
	Mints    []GenesisMint    `toml:"mints"`
}

type GenesisAccount struct {
	Address string `toml:"address"`
	Balance uint64 `toml:"balance"`
}

type GenesisMint struct {
	Symbol    string `toml:"symbol"`
	Authority string `toml:"authority"`
}

// Webhook forwards committed receipts to an HTTP endpoint. An empty
// endpoint disables it.
type Webhook struct {
	Endpoint      string   `toml:"endpoint,omitempty"`
	Secret        string   `toml:"secret,omitempty"`
	EventPrefixes []string `toml:"event_prefixes,omitempty"`
}
