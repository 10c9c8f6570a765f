// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package badgerdb implements store.S on an embedded Badger key/value
// database, either on disk or fully in memory.
package badgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/xmidt-org/contentcache/store"
	"go.uber.org/zap"
)

const maxConflictRetries = 5

var errDatabaseClosed = errors.New("badger database is closed")

type Config struct {
	// Path to the database directory. If empty, the database lives in memory.
	Path string

	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
}

type DB struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadger opens the database described by config.
func NewBadger(config Config, logger *zap.Logger) (*DB, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.Path == "" || config.InMemory {
		// in-memory mode refuses a directory
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.KeyNotFoundError{Key: key}
	}
	if err != nil {
		return nil, store.NewInternalError(store.ReadType, err)
	}
	return value, nil
}

func (d *DB) Set(_ context.Context, key string, value []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return store.NewInternalError(store.InsertType, err)
	}
	return nil
}

// SetNX runs the existence check and the write in one transaction. A commit
// conflict means another writer touched the key first, so the transaction is
// replayed and observes that write.
func (d *DB) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	var (
		written bool
		err     error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		written = false
		err = d.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			written = true
			return txn.Set([]byte(key), value)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		d.logger.Debug("retrying conflicting set-if-absent", zap.String("key", key), zap.Int("attempt", attempt))
	}
	if err != nil {
		return false, store.NewInternalError(store.InsertType, err)
	}
	return written, nil
}

func (d *DB) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) Delete(_ context.Context, keys ...string) (int, error) {
	var deleted int
	err := d.db.Update(func(txn *badger.Txn) error {
		deleted = 0
		for _, key := range keys {
			_, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, store.NewInternalError(store.DeleteType, err)
	}
	return deleted, nil
}

func (d *DB) Ping(context.Context) error {
	if d.db.IsClosed() {
		return errDatabaseClosed
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
