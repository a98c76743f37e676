package storage

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
)

// BadgerBackend is a Backend on a badger database.
type BadgerBackend struct {
	db   *badger.DB
	path string
}

// NewBadgerBackend opens, or creates, the badger database in path.
func NewBadgerBackend(path string, logger *logrus.Entry) (*BadgerBackend, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)
	if logger != nil {
		opts = opts.WithLogger(logger)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{
		db:   handle,
		path: path,
	}, nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(key []byte) ([]byte, error) {
	var res []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		res, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	return res, err
}

// Set implements Backend.
func (b *BadgerBackend) Set(key, value []byte) error {
	tx := b.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(key, value); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete implements Backend.
func (b *BadgerBackend) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Iterate implements Backend.
func (b *BadgerBackend) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
