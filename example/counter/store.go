package counter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/cramberry/pkg/cramberry"
	bolt "go.etcd.io/bbolt"
)

const fileMode = 0600

var (
	bucketName = []byte("counter")
	stateKey   = []byte("state")
)

// State is the committed counter state.
type State struct {
	TxCount uint64 `cramberry:"1"`
	// Hashes counts BeginBlock calls.
	Hashes  uint64 `cramberry:"2"`
	Height  int64  `cramberry:"3"`
	AppHash []byte `cramberry:"4"`
}

// Store persists committed state across restarts.
type Store interface {
	// Load returns the last saved state, or the zero State when
	// nothing has been saved.
	Load() (State, error)
	Save(State) error
	Close() error
}

// MemStore keeps state in memory.
type MemStore struct {
	mu    sync.Mutex
	state State
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.AppHash = append([]byte(nil), m.state.AppHash...)
	return s, nil
}

func (m *MemStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.AppHash = append([]byte(nil), s.AppHash...)
	m.state = s
	return nil
}

func (m *MemStore) Close() error { return nil }

// BoltStore keeps state in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, fileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("counter: open store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counter: init store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Load() (State, error) {
	var s State
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(stateKey)
		if v == nil {
			return nil
		}
		// v is only valid inside the transaction.
		return cramberry.Unmarshal(append([]byte(nil), v...), &s)
	})
	if err != nil {
		return State{}, fmt.Errorf("counter: load state: %w", err)
	}
	return s, nil
}

func (b *BoltStore) Save(s State) error {
	data, err := cramberry.Marshal(s)
	if err != nil {
		return fmt.Errorf("counter: encode state: %w", err)
	}
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(stateKey, data)
	}); err != nil {
		return fmt.Errorf("counter: save state: %w", err)
	}
	return nil
}

func (b *BoltStore) Close() error {
	if b.db == nil {
		return errors.New("counter: store not open")
	}
	return b.db.Close()
}
