package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"promisevault/core/types"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const maxQueryLimit = 500

// Indexer stores committed events in a SQL database for queries the key/value
// state cannot answer, such as the history of a treasury.
type Indexer struct {
	db *gorm.DB
}

// Open connects to the database behind dsn and migrates the schema.
func Open(driver, dsn string) (*Indexer, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Publish stores every event of receipt in one database transaction.
func (ix *Indexer) Publish(ctx context.Context, receipt *types.Receipt) error {
	if receipt == nil || len(receipt.Events) == 0 {
		return nil
	}
	records := make([]EventRecord, 0, len(receipt.Events))
	for i, evt := range receipt.Events {
		if evt == nil {
			continue
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("indexer: encode attributes: %w", err)
		}
		records = append(records, EventRecord{
			ID:          uuid.New(),
			Sequence:    receipt.Sequence,
			Position:    i,
			TxHash:      receipt.TxHash,
			Signer:      receipt.Signer,
			Type:        evt.Type,
			Treasury:    evt.Attributes["treasury"],
			Beneficiary: evt.Attributes["beneficiary"],
			Attributes:  string(attrs),
			BlockTime:   time.Unix(receipt.Timestamp, 0).UTC(),
		})
	}
	if len(records) == 0 {
		return nil
	}
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// Filter narrows an event query. Zero fields match everything.
type Filter struct {
	Treasury    string
	Beneficiary string
	Type        string
	// AfterSequence returns only events committed after this sequence.
	AfterSequence uint64
	Limit         int
}

// Event is the query form of an EventRecord.
type Event struct {
	Sequence   uint64            `json:"sequence"`
	TxHash     string            `json:"txHash"`
	Signer     string            `json:"signer"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

// Events returns matching events in commit order.
func (ix *Indexer) Events(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	query := ix.db.WithContext(ctx).Model(&EventRecord{}).Where("sequence > ?", f.AfterSequence)
	if f.Treasury != "" {
		query = query.Where("treasury = ?", f.Treasury)
	}
	if f.Beneficiary != "" {
		query = query.Where("beneficiary = ?", f.Beneficiary)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	var records []EventRecord
	if err := query.Order("sequence ASC").Order("position ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("indexer: query events: %w", err)
	}
	out := make([]Event, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		if rec.Attributes != "" {
			if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("indexer: decode attributes: %w", err)
			}
		}
		out = append(out, Event{
			Sequence:   rec.Sequence,
			TxHash:     rec.TxHash,
			Signer:     rec.Signer,
			Type:       rec.Type,
			Attributes: attrs,
			Timestamp:  rec.BlockTime.Unix(),
		})
	}
	return out, nil
}
