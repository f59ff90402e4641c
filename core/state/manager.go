package state

import (
	"bytes"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"promisevault/storage"
)

var errEmptyKey = errors.New("state: empty record key")

// Manager stores ledger records as RLP values under keccak256-hashed keys.
// Inside a transaction db is the session's storage.Overlay.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database returns the backing store.
func (m *Manager) Database() storage.Database { return m.db }

func prefixedKey(prefix []byte, id []byte) []byte {
	return append(append(make([]byte, 0, len(prefix)+len(id)), prefix...), id...)
}

// slot hashes a logical key into the flat keyspace shared by every record
// kind.
func slot(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errEmptyKey
	}
	return ethcrypto.Keccak256(key), nil
}

// read returns nil, nil for a missing slot.
func (m *Manager) read(hashed []byte) ([]byte, error) {
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut RLP-encodes value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	hashed, err := slot(key)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(hashed, encoded)
}

// KVGet decodes the record under key into out and reports whether it
// existed. A nil out only checks existence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	hashed, err := slot(key)
	if err != nil {
		return false, err
	}
	data, err := m.read(hashed)
	if err != nil || len(data) == 0 {
		return false, err
	}
	if out != nil {
		if err := rlp.DecodeBytes(data, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Manager) KVDelete(key []byte) error {
	hashed, err := slot(key)
	if err != nil {
		return err
	}
	return m.db.Delete(hashed)
}

// KVList returns the byte-string list under key, empty when absent.
func (m *Manager) KVList(key []byte) ([][]byte, error) {
	hashed, err := slot(key)
	if err != nil {
		return nil, err
	}
	return m.readList(hashed)
}

func (m *Manager) readList(hashed []byte) ([][]byte, error) {
	data, err := m.read(hashed)
	if err != nil {
		return nil, err
	}
	list := [][]byte{}
	if len(data) == 0 {
		return list, nil
	}
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// writeList deletes the slot once the list drains so empty indexes leave no
// residue.
func (m *Manager) writeList(hashed []byte, list [][]byte) error {
	if len(list) == 0 {
		return m.db.Delete(hashed)
	}
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.db.Put(hashed, encoded)
}

// KVAppend adds value to the list under key unless it is already there.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	hashed, err := slot(key)
	if err != nil {
		return err
	}
	list, err := m.readList(hashed)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	return m.writeList(hashed, append(list, bytes.Clone(value)))
}

// KVRemove drops value from the list under key. Remaining entries keep their
// order.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	hashed, err := slot(key)
	if err != nil {
		return err
	}
	list, err := m.readList(hashed)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	return m.writeList(hashed, kept)
}
