package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"promisevault/config"
	"promisevault/crypto"
	"promisevault/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig(t *testing.T) (*config.Config, crypto.Address) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := config.Default()
	cfg.StorageBackend = storage.BackendMemory
	cfg.Genesis = config.Genesis{
		Accounts: []config.GenesisAccount{{Address: key.Address().String(), Balance: 5_000}},
		Mints:    []config.GenesisMint{{Symbol: "usdc", Authority: key.Address().String()}},
	}
	return cfg, key.Address()
}

func TestNewRuntimeSeedsGenesisOnce(t *testing.T) {
	cfg, funded := testConfig(t)
	db := storage.NewMemDB()

	rt, err := newRuntime(db, cfg, discardLogger())
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	acc, err := rt.Account(funded)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.Balance != 5_000 {
		t.Fatalf("expected genesis balance 5000, got %d", acc.Balance)
	}
	if _, err := rt.Mint("USDC"); err != nil {
		t.Fatalf("expected genesis mint: %v", err)
	}

	// A restart over the same database must not fail or re-credit.
	rt, err = newRuntime(db, cfg, discardLogger())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	acc, err = rt.Account(funded)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.Balance != 5_000 {
		t.Fatalf("genesis applied twice: balance %d", acc.Balance)
	}
}

func TestNewRuntimeRejectsBadProgramAddress(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.ProgramAddress = "not-an-address"
	if _, err := newRuntime(storage.NewMemDB(), cfg, discardLogger()); err == nil {
		t.Fatalf("expected program address error")
	}
}

func TestOptionalSinks(t *testing.T) {
	ix, err := openIndexer(config.Indexer{Driver: config.IndexerDisabled})
	if err != nil || ix != nil {
		t.Fatalf("disabled indexer should be nil, got %v %v", ix, err)
	}
	ix, err = openIndexer(config.Indexer{Driver: config.IndexerSQLite, DSN: filepath.Join(t.TempDir(), "events.db")})
	if err != nil {
		t.Fatalf("sqlite indexer: %v", err)
	}
	_ = ix.Close()

	dispatcher, err := openWebhook(config.Webhook{}, discardLogger())
	if err != nil || dispatcher != nil {
		t.Fatalf("webhook without endpoint should be nil, got %v %v", dispatcher, err)
	}
	dispatcher, err = openWebhook(config.Webhook{Endpoint: "http://127.0.0.1:1/hook", Secret: "s3cret"}, discardLogger())
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	dispatcher.Close()
}
