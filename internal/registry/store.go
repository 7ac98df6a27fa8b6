// internal/registry/store.go
package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerStore keeps JSON records under a key prefix.
type badgerStore[T any] struct {
	db     *badger.DB
	prefix string
}

func newBadgerStore[T any](db *badger.DB, prefix string) *badgerStore[T] {
	return &badgerStore[T]{
		db:     db,
		prefix: prefix,
	}
}

func (s *badgerStore[T]) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *badgerStore[T]) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *badgerStore[T]) create(id string, record T) error {
	if id == "" {
		return fmt.Errorf("record ID cannot be empty")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	key := s.makeKey(id)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("record already exists: %s", id)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

// get returns badger.ErrKeyNotFound when id is unknown.
func (s *badgerStore[T]) get(id string) (T, error) {
	var record T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record, err
}

func (s *badgerStore[T]) delete(id string) error {
	key := s.makeKey(id)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// each calls fn for every record until fn returns false.
func (s *badgerStore[T]) each(fn func(id string, record T) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var record T
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", item.Key(), err)
			}
			if !fn(s.stripPrefix(item.KeyCopy(nil)), record) {
				return nil
			}
		}
		return nil
	})
}
