package exports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"promisevault/crypto"
	"promisevault/native/treasury"
)

func sampleRows(t *testing.T) []PromiseRow {
	t.Helper()
	var tid, alice crypto.Address
	tid[19] = 1
	alice[19] = 2
	tr := &treasury.Treasury{ID: tid, Mode: treasury.ModeAdjustable}
	rows, err := Rows(tr, []*treasury.Promise{
		{Treasury: tid, Beneficiary: alice, TotalAmount: uint256.NewInt(100), NonClaimed: uint256.NewInt(40), Status: treasury.PromiseOpen},
		nil,
	})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func TestRows(t *testing.T) {
	rows := sampleRows(t)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].Claimed != "60" || rows[0].NonClaimed != "40" {
		t.Fatalf("unexpected amounts: %+v", rows[0])
	}
}

func TestPromisesCSV(t *testing.T) {
	data, checksum, err := PromisesCSV(sampleRows(t))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(checksum) != 64 {
		t.Fatalf("unexpected checksum %q", checksum)
	}
	output := string(data)
	if !strings.HasPrefix(output, "treasury,mode,beneficiary,total_amount,non_claimed,claimed,status\n") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, ",100,40,60,") {
		t.Fatalf("missing amounts: %s", output)
	}
}

func TestWritePromisesParquet(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePromisesParquet(&buf, sampleRows(t)); err != nil {
		t.Fatalf("parquet: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 8 || string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Fatalf("output is not a parquet file")
	}
}
