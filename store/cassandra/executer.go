// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"

	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"go.uber.org/zap"
)

type dbStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) (bool, error)
	Close()
	Ping() error
}

var (
	noDataResponse = errors.New("no data from query")
	serverClosed   = errors.New("server is closed")
)

const (
	insertQuery       = "INSERT INTO gifnoc (key, value) VALUES (?,?)"
	insertAbsentQuery = "INSERT INTO gifnoc (key, value) VALUES (?,?) IF NOT EXISTS"
	selectQuery       = "SELECT value FROM gifnoc WHERE key = ?"
	existsQuery       = "SELECT key FROM gifnoc WHERE key = ?"
	deleteQuery       = "DELETE FROM gifnoc WHERE key = ? IF EXISTS"
)

type cassandraExecutor struct {
	session *gocql.Session
	logger  *zap.Logger
}

func connect(clusterConfig *gocql.ClusterConfig, logger *zap.Logger) (dbStore, error) {
	clusterConfig.PoolConfig.HostSelectionPolicy = gocql.HostPoolHostPolicy(hostpool.New(nil))
	session, err := clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	return &cassandraExecutor{session: session, logger: logger}, nil
}

func (s *cassandraExecutor) Set(ctx context.Context, key string, value []byte) error {
	return s.session.Query(insertQuery, key, value).WithContext(ctx).Exec()
}

// SetNX relies on a lightweight transaction, so concurrent writers agree on a
// single winner.
func (s *cassandraExecutor) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return s.session.Query(insertAbsentQuery, key, value).WithContext(ctx).MapScanCAS(map[string]interface{}{})
}

func (s *cassandraExecutor) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.session.Query(selectQuery, key).WithContext(ctx).Scan(&value)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, noDataResponse
	}
	return value, err
}

func (s *cassandraExecutor) Exists(ctx context.Context, key string) (bool, error) {
	var found string
	err := s.session.Query(existsQuery, key).WithContext(ctx).Scan(&found)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *cassandraExecutor) Remove(ctx context.Context, key string) (bool, error) {
	applied, err := s.session.Query(deleteQuery, key).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		s.logger.Error("failed to delete key", zap.String("key", key), zap.Error(err))
	}
	return applied, err
}

func (s *cassandraExecutor) Close() {
	s.session.Close()
}

func (s *cassandraExecutor) Ping() error {
	if s.session.Closed() {
		return serverClosed
	}
	return nil
}
