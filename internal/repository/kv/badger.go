package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"redbead/internal/domain"
)

type badgerRepo struct {
	db *badger.DB
}

// OpenBadger opens an embedded store at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (Store, func() error, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger: %w", err)
	}
	return &badgerRepo{db: db}, db.Close, nil
}

func (r *badgerRepo) Get(_ context.Context, key string) (string, error) {
	var value string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *badgerRepo) Set(_ context.Context, key, value string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (r *badgerRepo) Remove(_ context.Context, key string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
