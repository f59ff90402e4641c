package storage

import (
	"errors"
	"sort"
	"sync"
)

// ErrOverlayClosed is returned when an overlay is used after Commit or
// Discard.
var ErrOverlayClosed = errors.New("storage: overlay already finalised")

// Overlay buffers writes on top of a base database. Reads observe the
// buffered writes first. Nothing reaches the base until Commit, which flushes
// the buffer through a single backend batch.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	writes  map[string][]byte
	deleted map[string]struct{}
	done    bool
}

// NewOverlay wraps base in an empty write journal.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.done {
		return nil, ErrOverlayClosed
	}
	k := string(key)
	if _, ok := o.deleted[k]; ok {
		return nil, ErrNotFound
	}
	if value, ok := o.writes[k]; ok {
		return cloneBytes(value), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrOverlayClosed
	}
	k := string(key)
	delete(o.deleted, k)
	o.writes[k] = cloneBytes(value)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrOverlayClosed
	}
	k := string(key)
	delete(o.writes, k)
	o.deleted[k] = struct{}{}
	return nil
}

// NewBatch returns a batch whose Write lands in the overlay journal, not the
// base database.
func (o *Overlay) NewBatch() Batch {
	return &overlayBatch{overlay: o}
}

// Close is a no-op; the base database is owned by the caller.
func (o *Overlay) Close() {}

// Pending reports the number of buffered writes and deletions.
func (o *Overlay) Pending() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.writes) + len(o.deleted)
}

// Commit flushes the journal to the base database in one batch and finalises
// the overlay. Keys are written in sorted order so replays are deterministic.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrOverlayClosed
	}
	batch := o.base.NewBatch()
	for _, k := range sortedKeys(o.writes) {
		if err := batch.Put([]byte(k), o.writes[k]); err != nil {
			return err
		}
	}
	deleted := make([]string, 0, len(o.deleted))
	for k := range o.deleted {
		deleted = append(deleted, k)
	}
	sort.Strings(deleted)
	for _, k := range deleted {
		if err := batch.Delete([]byte(k)); err != nil {
			return err
		}
	}
	if batch.Len() > 0 {
		if err := batch.Write(); err != nil {
			return err
		}
	}
	o.reset()
	return nil
}

// Discard drops every buffered write and finalises the overlay.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

func (o *Overlay) reset() {
	o.writes = nil
	o.deleted = nil
	o.done = true
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type overlayBatch struct {
	overlay *Overlay
	ops     []batchOp
}

func (b *overlayBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (b *overlayBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), delete: true})
	return nil
}

func (b *overlayBatch) Len() int { return len(b.ops) }

func (b *overlayBatch) Write() error {
	for _, op := range b.ops {
		var err error
		if op.delete {
			err = b.overlay.Delete(op.key)
		} else {
			err = b.overlay.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}
