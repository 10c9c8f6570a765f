// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/inmem"
)

type mockDB struct {
	mock.Mock
}

func (s *mockDB) Get(_ context.Context, key string) ([]byte, error) {
	args := s.Called(key)
	value, _ := args.Get(0).([]byte)
	return value, args.Error(1)
}

func (s *mockDB) Set(_ context.Context, key string, value []byte) error {
	args := s.Called(key, value)
	return args.Error(0)
}

func (s *mockDB) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	args := s.Called(key, value)
	return args.Bool(0), args.Error(1)
}

func (s *mockDB) Exists(_ context.Context, key string) (bool, error) {
	args := s.Called(key)
	return args.Bool(0), args.Error(1)
}

func (s *mockDB) Remove(_ context.Context, key string) (bool, error) {
	args := s.Called(key)
	return args.Bool(0), args.Error(1)
}

func (s *mockDB) Close() {
	s.Called()
}

func (s *mockDB) Ping() error {
	args := s.Called()
	return args.Error(0)
}

// memDB answers like the cluster would, backed by an in-memory map.
type memDB struct {
	m *inmem.InMem
}

func (d memDB) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := d.m.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, noDataResponse
	}
	return value, err
}

func (d memDB) Set(ctx context.Context, key string, value []byte) error {
	return d.m.Set(ctx, key, value)
}

func (d memDB) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return d.m.SetNX(ctx, key, value)
}

func (d memDB) Exists(ctx context.Context, key string) (bool, error) {
	return d.m.Exists(ctx, key)
}

func (d memDB) Remove(ctx context.Context, key string) (bool, error) {
	deleted, err := d.m.Delete(ctx, key)
	return deleted == 1, err
}

func (d memDB) Close() {}

func (d memDB) Ping() error { return nil }
