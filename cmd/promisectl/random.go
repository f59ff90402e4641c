package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"

	"promisevault/crypto"
)

// randomAllocations splits total into n positive parts drawn from rng. The
// parts always sum to total exactly.
func randomAllocations(total *uint256.Int, n int, rng io.Reader) ([]*uint256.Int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("user count must be positive")
	}
	count := uint256.NewInt(uint64(n))
	if total == nil || total.Lt(count) {
		return nil, fmt.Errorf("total must be at least the user count (%d)", n)
	}
	weights := make([]uint64, n)
	sum := new(uint256.Int)
	buf := make([]byte, 4)
	for i := range weights {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, err
		}
		weights[i] = uint64(binary.BigEndian.Uint32(buf)) + 1
		sum.Add(sum, uint256.NewInt(weights[i]))
	}
	// Every user gets one unit; the remainder is split by weight.
	remainder := new(uint256.Int).Sub(total, count)
	out := make([]*uint256.Int, n)
	assigned := new(uint256.Int)
	for i := range weights {
		share := new(uint256.Int)
		if i == n-1 {
			share.Sub(remainder, assigned)
		} else {
			// remainder*weight can not overflow for totals below 2^224.
			share.Mul(remainder, uint256.NewInt(weights[i]))
			share.Div(share, sum)
			assigned.Add(assigned, share)
		}
		out[i] = share.AddUint64(share, 1)
	}
	return out, nil
}

func runGenerateRandomPromises(c *cli, args []string) int {
	fs := newFlagSet("generate-random-promises", c.stderr)
	var (
		users          int
		total, outDir  string
		manifestFormat string
	)
	fs.IntVar(&users, "users", 10, "number of generated beneficiaries")
	fs.StringVar(&total, "total", "", "amount split across the users")
	fs.StringVar(&outDir, "out", "", "directory receiving keystores and the manifest")
	fs.StringVar(&manifestFormat, "format", "yaml", "manifest format: yaml or json")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	amount, err := parseAmount("total", total)
	if err != nil {
		return c.fail("%v", err)
	}
	if outDir == "" {
		return c.fail("--out is required")
	}
	if manifestFormat != "yaml" && manifestFormat != "json" {
		return c.fail("--format must be yaml or json")
	}
	if limit := new(uint256.Int).Lsh(uint256.NewInt(1), 224); !amount.Lt(limit) {
		return c.fail("--total is too large")
	}
	allocations, err := randomAllocations(amount, users, rand.Reader)
	if err != nil {
		return c.fail("%v", err)
	}
	pass, err := keystorePassphrase.Get()
	if err != nil {
		return c.fail("%v", err)
	}

	keyDir := filepath.Join(outDir, "keys")
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return c.fail("%v", err)
	}
	manifest := &Manifest{Promises: make([]ManifestEntry, 0, users)}
	for _, allocation := range allocations {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return c.fail("generate key: %v", err)
		}
		path := filepath.Join(keyDir, key.Address().String()+".json")
		if err := crypto.SaveKeystore(path, key, pass, crypto.KeystoreLight); err != nil {
			return c.fail("save keystore: %v", err)
		}
		manifest.Promises = append(manifest.Promises, ManifestEntry{User: key.Address().String(), Amount: allocation.Dec()})
	}
	manifestPath := filepath.Join(outDir, "promises."+manifestFormat)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return c.fail("write manifest: %v", err)
	}
	fmt.Fprintf(c.stdout, "wrote %d keystores to %s and manifest %s\n", users, keyDir, manifestPath)
	return 0
}
