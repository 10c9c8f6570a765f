// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements store.S on a single SQLite table using the pure
// Go glebarez driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/xmidt-org/contentcache/store"
)

const (
	driverName   = "sqlite"
	memoryDSN    = ":memory:"
	createTable  = `CREATE TABLE IF NOT EXISTS cache (key TEXT PRIMARY KEY, value BLOB NOT NULL)`
	selectValue  = `SELECT value FROM cache WHERE key = ?`
	selectExists = `SELECT 1 FROM cache WHERE key = ?`
	upsertValue  = `INSERT OR REPLACE INTO cache (key, value) VALUES (?, ?)`
	insertValue  = `INSERT OR IGNORE INTO cache (key, value) VALUES (?, ?)`
	deleteValue  = `DELETE FROM cache WHERE key = ?`
)

type Config struct {
	// Path of the database file. If empty, a private in-memory database is
	// used.
	Path string
}

type DB struct {
	db         *sql.DB
	writeMutex sync.Mutex
}

// NewSQLite opens the database and makes sure the cache table exists.
func NewSQLite(config Config) (*DB, error) {
	dsn := config.Path
	if dsn == "" {
		dsn = memoryDSN
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if dsn == memoryDSN {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if _, err = db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx, selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.KeyNotFoundError{Key: key}
	}
	if err != nil {
		return nil, store.NewInternalError(store.ReadType, err)
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	d.writeMutex.Lock()
	defer d.writeMutex.Unlock()
	if _, err := d.db.ExecContext(ctx, upsertValue, key, value); err != nil {
		return store.NewInternalError(store.InsertType, err)
	}
	return nil
}

func (d *DB) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	d.writeMutex.Lock()
	defer d.writeMutex.Unlock()
	result, err := d.db.ExecContext(ctx, insertValue, key, value)
	if err != nil {
		return false, store.NewInternalError(store.InsertType, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, store.NewInternalError(store.InsertType, err)
	}
	return affected == 1, nil
}

func (d *DB) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, selectExists, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, store.NewInternalError(store.ExistsType, err)
	}
	return true, nil
}

func (d *DB) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	d.writeMutex.Lock()
	defer d.writeMutex.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.NewInternalError(store.DeleteType, err)
	}
	var deleted int64
	for _, key := range keys {
		result, err := tx.ExecContext(ctx, deleteValue, key)
		if err != nil {
			tx.Rollback()
			return 0, store.NewInternalError(store.DeleteType, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, store.NewInternalError(store.DeleteType, err)
		}
		deleted += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, store.NewInternalError(store.DeleteType, err)
	}
	return int(deleted), nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}
