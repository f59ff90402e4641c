package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"promisevault/core/types"
)

func setupTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	ix, err := New(db)
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func receipt(seq uint64, events ...*types.Event) *types.Receipt {
	return &types.Receipt{
		Sequence:  seq,
		TxHash:    fmt.Sprintf("0x%02x", seq),
		Signer:    "pv1admin",
		Timestamp: 1_700_000_000 + int64(seq),
		Events:    events,
	}
}

func TestPublishAndQuery(t *testing.T) {
	ix := setupTestIndexer(t)
	ctx := context.Background()

	err := ix.Publish(ctx, receipt(1,
		&types.Event{Type: "treasury.opened", Attributes: map[string]string{"treasury": "pv1t1"}},
		&types.Event{Type: "promise.opened", Attributes: map[string]string{"treasury": "pv1t1", "beneficiary": "pv1alice"}},
	))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	err = ix.Publish(ctx, receipt(2,
		&types.Event{Type: "promise.opened", Attributes: map[string]string{"treasury": "pv1t2", "beneficiary": "pv1alice"}},
		&types.Event{Type: "custody.transfer", Attributes: map[string]string{"from": "pv1x"}},
	))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := ix.Publish(ctx, receipt(3)); err != nil {
		t.Fatalf("publish empty receipt: %v", err)
	}

	byTreasury, err := ix.Events(ctx, Filter{Treasury: "pv1t1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byTreasury) != 2 || byTreasury[0].Type != "treasury.opened" || byTreasury[1].Type != "promise.opened" {
		t.Fatalf("unexpected treasury history: %+v", byTreasury)
	}
	if byTreasury[1].Attributes["beneficiary"] != "pv1alice" {
		t.Fatalf("attributes not restored: %+v", byTreasury[1].Attributes)
	}

	byBeneficiary, err := ix.Events(ctx, Filter{Beneficiary: "pv1alice", AfterSequence: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byBeneficiary) != 1 || byBeneficiary[0].Sequence != 2 {
		t.Fatalf("unexpected beneficiary history: %+v", byBeneficiary)
	}

	limited, err := ix.Events(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(limited) != 1 || limited[0].Sequence != 1 {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
