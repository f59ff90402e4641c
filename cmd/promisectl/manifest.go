package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/internal/safemath"
	"promisevault/rpc"
)

const defaultBatchSize = 5

// ManifestEntry allocates Amount to User. Amounts are decimal strings so
// they can exceed 64 bits.
type ManifestEntry struct {
	User   string `json:"user" yaml:"user"`
	Amount string `json:"amount" yaml:"amount"`
}

// Manifest is the file format read by update-promises and written by
// generate-random-promises.
type Manifest struct {
	Promises []ManifestEntry `json:"promises" yaml:"promises"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &m)
	} else {
		err = json.Unmarshal(raw, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(path string, m *Manifest) error {
	var (
		raw []byte
		err error
	)
	if isYAML(path) {
		raw, err = yaml.Marshal(m)
	} else {
		raw, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// mergeManifests sums the amounts of every user across paths.
func mergeManifests(paths []string) (map[crypto.Address]*uint256.Int, error) {
	out := make(map[crypto.Address]*uint256.Int)
	for _, path := range paths {
		m, err := readManifest(path)
		if err != nil {
			return nil, err
		}
		for i, entry := range m.Promises {
			user, err := crypto.ParseAddress(strings.TrimSpace(entry.User))
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: user: %w", path, i, err)
			}
			amount, err := uint256.FromDecimal(strings.TrimSpace(entry.Amount))
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: amount %q: %w", path, i, entry.Amount, err)
			}
			sum, err := safemath.Add(out[user], amount)
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: %w", path, i, err)
			}
			out[user] = sum
		}
	}
	return out, nil
}

// planUpdates returns the instructions that bring the treasury's promises to
// desired: missing users get a new promise and changed amounts are resized.
// Promises absent from desired are left alone, as are users in retired whose
// promise was already claimed or closed and can not be reopened.
func planUpdates(treasuryID crypto.Address, mode string, desired map[crypto.Address]*uint256.Int, existing []rpc.PromiseResult, retired map[crypto.Address]string) ([]types.Instruction, error) {
	current := make(map[crypto.Address]*uint256.Int, len(existing))
	for _, p := range existing {
		user, err := crypto.ParseAddress(p.Beneficiary)
		if err != nil {
			return nil, fmt.Errorf("existing promise: %w", err)
		}
		amount, err := uint256.FromDecimal(p.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("existing promise of %s: %w", p.Beneficiary, err)
		}
		current[user] = amount
	}

	users := sortedUsers(desired)

	var out []types.Instruction
	for _, user := range users {
		if _, done := retired[user]; done {
			continue
		}
		want := desired[user]
		have, ok := current[user]
		var (
			instr types.Instruction
			err   error
		)
		switch {
		case !ok:
			instr, err = newInstruction(types.InstrPromiseOpen, types.PromiseOpenPayload{Treasury: treasuryID, Beneficiary: user, Amount: want})
		case have.Eq(want):
			continue
		case mode != "adjustable":
			return nil, fmt.Errorf("promise of %s is %s but the manifest wants %s; %s treasuries can not be resized", user, have.Dec(), want.Dec(), mode)
		default:
			instr, err = newInstruction(types.InstrPromiseSetAmount, types.PromiseSetAmountPayload{Treasury: treasuryID, Beneficiary: user, Amount: want})
		}
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	return out, nil
}

func sortedUsers[V any](m map[crypto.Address]V) []crypto.Address {
	users := make([]crypto.Address, 0, len(m))
	for user := range m {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users
}

// retiredPromises looks up every desired user without a live promise and
// returns those whose record is a claimed or closed tombstone, with its
// status.
func retiredPromises(ctx context.Context, ledger ledgerClient, treasuryID crypto.Address, desired map[crypto.Address]*uint256.Int, existing []rpc.PromiseResult) (map[crypto.Address]string, error) {
	live := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		live[p.Beneficiary] = struct{}{}
	}
	retired := make(map[crypto.Address]string)
	for _, user := range sortedUsers(desired) {
		if _, ok := live[user.String()]; ok {
			continue
		}
		p, err := ledger.Promise(ctx, treasuryID, user)
		if rpc.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("promise of %s: %w", user, err)
		}
		if p.Status == "claimed" || p.Status == "closed" {
			retired[user] = p.Status
		}
	}
	return retired, nil
}

func batches(instrs []types.Instruction, size int) [][]types.Instruction {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]types.Instruction
	for start := 0; start < len(instrs); start += size {
		end := start + size
		if end > len(instrs) {
			end = len(instrs)
		}
		out = append(out, instrs[start:end])
	}
	return out
}

func runUpdatePromises(c *cli, args []string) int {
	fs := newFlagSet("update-promises", c.stderr)
	var (
		keyPath, treasuryText string
		batchSize             int
		simulate              bool
	)
	fs.StringVar(&keyPath, "key", "", "keystore of the treasury administrator")
	fs.StringVar(&treasuryText, "treasury", "", "treasury id")
	fs.IntVar(&batchSize, "batch-size", defaultBatchSize, "instructions per transaction")
	fs.BoolVar(&simulate, "simulate", false, "sign and print without submitting")
	if err := parseFlags(fs, args, true); err != nil {
		return 1
	}
	id, err := requireAddress("treasury", treasuryText)
	if err != nil {
		return c.fail("%v", err)
	}
	if fs.NArg() == 0 {
		return c.fail("at least one manifest file is required")
	}
	if batchSize <= 0 {
		return c.fail("--batch-size must be positive")
	}
	desired, err := mergeManifests(fs.Args())
	if err != nil {
		return c.fail("%v", err)
	}

	ctx, cancel := commandContext()
	defer cancel()
	t, err := c.ledger().Treasury(ctx, id)
	if err != nil {
		return c.fail("treasury: %v", err)
	}
	existing, err := c.ledger().Promises(ctx, id)
	if err != nil {
		return c.fail("promises: %v", err)
	}
	retired, err := retiredPromises(ctx, c.ledger(), id, desired, existing)
	if err != nil {
		return c.fail("%v", err)
	}
	for _, user := range sortedUsers(retired) {
		fmt.Fprintf(c.stderr, "skipping %s: promise already %s\n", user, retired[user])
	}
	instrs, err := planUpdates(id, t.Mode, desired, existing, retired)
	if err != nil {
		return c.fail("%v", err)
	}
	if len(instrs) == 0 {
		fmt.Fprintln(c.stderr, "promises already match the manifests")
		return 0
	}
	s, err := c.newSigner(ctx, keyPath)
	if err != nil {
		return c.fail("%v", err)
	}
	for i, batch := range batches(instrs, batchSize) {
		if err := s.send(ctx, simulate, batch...); err != nil {
			return c.fail("batch %d: %v", i+1, err)
		}
	}
	return 0
}
