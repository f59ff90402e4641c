package main

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/integrations/exports"
	"promisevault/native/treasury"
	"promisevault/rpc"
)

// fromResults rebuilds the ledger records export works on.
func fromResults(tr *rpc.TreasuryResult, results []rpc.PromiseResult) (*treasury.Treasury, []*treasury.Promise, error) {
	id, err := crypto.ParseAddress(tr.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("treasury id: %w", err)
	}
	mode, ok := treasury.ParseMode(tr.Mode)
	if !ok {
		return nil, nil, fmt.Errorf("treasury mode %q", tr.Mode)
	}
	t := &treasury.Treasury{ID: id, Mode: mode}
	promises := make([]*treasury.Promise, 0, len(results))
	for _, r := range results {
		beneficiary, err := crypto.ParseAddress(r.Beneficiary)
		if err != nil {
			return nil, nil, fmt.Errorf("beneficiary: %w", err)
		}
		total, err := uint256.FromDecimal(r.TotalAmount)
		if err != nil {
			return nil, nil, fmt.Errorf("total amount of %s: %w", r.Beneficiary, err)
		}
		nonClaimed, err := uint256.FromDecimal(r.NonClaimed)
		if err != nil {
			return nil, nil, fmt.Errorf("non-claimed amount of %s: %w", r.Beneficiary, err)
		}
		status, ok := treasury.ParsePromiseStatus(r.Status)
		if !ok {
			return nil, nil, fmt.Errorf("promise status %q", r.Status)
		}
		promises = append(promises, &treasury.Promise{
			Treasury:    id,
			Beneficiary: beneficiary,
			TotalAmount: total,
			NonClaimed:  nonClaimed,
			Deposit:     r.Deposit,
			Status:      status,
		})
	}
	return t, promises, nil
}

func runExportPromises(c *cli, args []string) int {
	fs := newFlagSet("export-promises", c.stderr)
	var treasuryText, format, out string
	fs.StringVar(&treasuryText, "treasury", "", "treasury id")
	fs.StringVar(&format, "format", "csv", "output format: csv or parquet")
	fs.StringVar(&out, "out", "", "output file")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	id, err := requireAddress("treasury", treasuryText)
	if err != nil {
		return c.fail("%v", err)
	}
	if format != "csv" && format != "parquet" {
		return c.fail("--format must be csv or parquet")
	}
	if out == "" {
		return c.fail("--out is required")
	}

	ctx, cancel := commandContext()
	defer cancel()
	tr, err := c.ledger().Treasury(ctx, id)
	if err != nil {
		return c.fail("treasury: %v", err)
	}
	results, err := c.ledger().Promises(ctx, id)
	if err != nil {
		return c.fail("promises: %v", err)
	}
	t, promises, err := fromResults(tr, results)
	if err != nil {
		return c.fail("%v", err)
	}
	rows, err := exports.Rows(t, promises)
	if err != nil {
		return c.fail("%v", err)
	}

	if format == "csv" {
		data, checksum, err := exports.PromisesCSV(rows)
		if err != nil {
			return c.fail("render csv: %v", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return c.fail("%v", err)
		}
		fmt.Fprintf(c.stdout, "wrote %d promises to %s (sha256 %s)\n", len(rows), out, checksum)
		return 0
	}
	f, err := os.Create(out)
	if err != nil {
		return c.fail("%v", err)
	}
	if err := exports.WritePromisesParquet(f, rows); err != nil {
		_ = f.Close()
		return c.fail("render parquet: %v", err)
	}
	if err := f.Close(); err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.stdout, "wrote %d promises to %s\n", len(rows), out)
	return 0
}
