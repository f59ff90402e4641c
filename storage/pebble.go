package storage

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

// ErrClosed is returned by operations on a backend after Close.
var ErrClosed = errors.New("storage: database is closed")

const (
	pebbleCacheSize    = 64 << 20
	pebbleMemTableSize = 32 << 20
)

// PebbleDB stores ledger state in a pebble database. Every write is synced.
type PebbleDB struct {
	mu     sync.RWMutex
	db     *pebble.DB
	cache  *pebble.Cache
	closed bool
}

// NewPebbleDB opens or creates the database at path. The block cache is
// owned by the returned PebbleDB and released by Close.
func NewPebbleDB(path string) (*PebbleDB, error) {
	cache := pebble.NewCache(pebbleCacheSize)
	db, err := pebble.Open(path, &pebble.Options{
		Cache:                       cache,
		MemTableSize:                pebbleMemTableSize,
		MemTableStopWritesThreshold: 4,
	})
	if err != nil {
		cache.Unref()
		return nil, err
	}
	return &PebbleDB{db: db, cache: cache}, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return cloneBytes(value), nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{store: p, batch: p.db.NewBatch()}
}

func (p *PebbleDB) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	_ = p.db.Close()
	p.cache.Unref()
}

type pebbleBatch struct {
	store *PebbleDB
	batch *pebble.Batch
	count int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.count++
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.count++
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) Len() int { return b.count }

func (b *pebbleBatch) Write() error {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	if b.store.closed {
		return ErrClosed
	}
	defer b.batch.Close()
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.count = 0
	return nil
}
