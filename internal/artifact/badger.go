package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "artifact:"

// BadgerStore keeps artifacts in an embedded badger database. PutAll is a
// single transaction, so a bundle and its parts are replaced together.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates a badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger artifact store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func dbKey(key string) ([]byte, error) {
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return []byte(keyPrefix + k), nil
}

// Get reads one artifact.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := dbKey(key)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(key)
		}
		if err != nil {
			return fmt.Errorf("get artifact %q: %w", key, err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put writes one artifact.
func (s *BadgerStore) Put(ctx context.Context, key string, data []byte) error {
	return s.PutAll(ctx, map[string][]byte{key: data})
}

// PutAll writes every blob in one transaction.
func (s *BadgerStore) PutAll(ctx context.Context, blobs map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for key, data := range blobs {
			k, err := dbKey(key)
			if err != nil {
				return err
			}
			if err := txn.Set(k, data); err != nil {
				return fmt.Errorf("set artifact %q: %w", key, err)
			}
		}
		return nil
	})
}

// Exists reports whether key is present.
func (s *BadgerStore) Exists(ctx context.Context, key string) (bool, error) {
	k, err := dbKey(key)
	if err != nil {
		return false, err
	}
	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes key.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	k, err := dbKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete artifact %q: %w", key, err)
		}
		return nil
	})
}

// List returns the sorted keys starting with prefix.
func (s *BadgerStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(keyPrefix + prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return keys, nil
}

// Ping fails once the database is closed.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger artifact store is closed")
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
