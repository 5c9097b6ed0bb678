package persistence

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerService stores values in a shared Badger database. Preferred in the
// daemon: checkpoints survive crashes without a file per key and writes are
// atomic.
type BadgerService struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the state database at path.
func OpenBadger(path string) (*BadgerService, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &BadgerService{db: db}, nil
}

func (s *BadgerService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerService) NewStore(prefix, id, tag string) Store {
	return &badgerStore{
		db:  s.db,
		key: []byte(fmt.Sprintf("%s:%s:%s", prefix, id, tag)),
	}
}

type badgerStore struct {
	db  *badger.DB
	key []byte
}

func (s *badgerStore) Save(data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, raw)
	})
}

func (s *badgerStore) Load(data interface{}) error {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotExists
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, data)
}
