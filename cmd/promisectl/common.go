package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"promisevault/cmd/internal/passphrase"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/rpc"
)

// ledgerClient is the subset of rpc.Client the commands use.
type ledgerClient interface {
	ChainInfo(ctx context.Context) (*rpc.ChainInfoResult, error)
	Account(ctx context.Context, addr crypto.Address) (*rpc.AccountResult, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Treasury(ctx context.Context, id crypto.Address) (*rpc.TreasuryResult, error)
	Promises(ctx context.Context, id crypto.Address) ([]rpc.PromiseResult, error)
	Promise(ctx context.Context, id, beneficiary crypto.Address) (*rpc.PromiseResult, error)
	DeriveAuthority(ctx context.Context, id crypto.Address) (*rpc.AuthorityResult, error)
}

var (
	cliNow             = time.Now
	newLedgerClient    = func(endpoint string) ledgerClient { return rpc.NewClient(endpoint, nil) }
	keystorePassphrase = passphrase.NewSource(keystorePassEnv, "Keystore passphrase")
	requestTimeout     = 30 * time.Second
)

type cli struct {
	stdout io.Writer
	stderr io.Writer
	rpcURL string
	client ledgerClient
}

func (c *cli) ledger() ledgerClient {
	if c.client == nil {
		c.client = newLedgerClient(c.rpcURL)
	}
	return c.client
}

func (c *cli) fail(format string, args ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

func (c *cli) printJSON(v interface{}) int {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return c.fail("encode output: %v", err)
	}
	fmt.Fprintln(c.stdout, string(encoded))
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses args and rejects positional arguments unless allowed.
func parseFlags(fs *flag.FlagSet, args []string, positional bool) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !positional && fs.NArg() > 0 {
		return fmt.Errorf("unexpected positional arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func requireAddress(name, value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func optionalAddress(name, value string, fallback crypto.Address) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return requireAddress(name, value)
}

func parseAmount(name, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be a non-negative integer: %w", name, err)
	}
	return amount, nil
}

// parseTime accepts unix seconds, RFC3339 or +duration relative to now. An
// empty value is zero.
func parseTime(name, value string, now time.Time) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.HasPrefix(value, "+") {
		d, err := time.ParseDuration(strings.TrimPrefix(value, "+"))
		if err != nil {
			return 0, fmt.Errorf("--%s: invalid duration: %w", name, err)
		}
		return uint64(now.Add(d).Unix()), nil
	}
	if secs, err := strconv.ParseUint(value, 10, 63); err == nil {
		return secs, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("--%s must be unix seconds, RFC3339 or +duration", name)
	}
	if ts.Unix() < 0 {
		return 0, fmt.Errorf("--%s is before 1970", name)
	}
	return uint64(ts.Unix()), nil
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--key is required")
	}
	pass, err := keystorePassphrase.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

func newInstruction(kind types.InstructionKind, payload interface{}) (types.Instruction, error) {
	return types.NewInstruction(kind, payload)
}

// signer builds, signs and submits transactions for one key. It tracks the
// nonce locally so consecutive batches, simulated or not, stay in sequence.
type signer struct {
	cli     *cli
	key     *crypto.PrivateKey
	chainID uint64
	program crypto.Address
	nonce   uint64
}

func (c *cli) newSigner(ctx context.Context, keyPath string) (*signer, error) {
	key, err := loadKey(keyPath)
	if err != nil {
		return nil, err
	}
	info, err := c.ledger().ChainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain info: %w", err)
	}
	program, err := crypto.ParseAddress(info.Program)
	if err != nil {
		return nil, fmt.Errorf("chain info: program: %w", err)
	}
	acc, err := c.ledger().Account(ctx, key.Address())
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", key.Address(), err)
	}
	return &signer{cli: c, key: key, chainID: info.ChainID, program: program, nonce: acc.Nonce}, nil
}

func (s *signer) address() crypto.Address { return s.key.Address() }

// Simulation is printed by --simulate instead of a receipt.
type Simulation struct {
	Hash         string             `json:"hash"`
	Signer       string             `json:"signer"`
	ChainID      uint64             `json:"chainId"`
	Nonce        uint64             `json:"nonce"`
	Instructions []string           `json:"instructions"`
	Transaction  *types.Transaction `json:"transaction"`
}

func (s *signer) send(ctx context.Context, simulate bool, instrs ...types.Instruction) error {
	tx := &types.Transaction{ChainID: s.chainID, Nonce: s.nonce, Instructions: instrs}
	if err := tx.Sign(s.key); err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	if simulate {
		hash, err := tx.Hash()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(instrs))
		for _, instr := range instrs {
			names = append(names, instr.Kind.String())
		}
		s.nonce++
		s.cli.printJSON(Simulation{
			Hash:         "0x" + hex.EncodeToString(hash),
			Signer:       s.address().String(),
			ChainID:      s.chainID,
			Nonce:        tx.Nonce,
			Instructions: names,
			Transaction:  tx,
		})
		return nil
	}
	receipt, err := s.cli.ledger().SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	s.nonce++
	s.cli.printJSON(receipt)
	return nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
