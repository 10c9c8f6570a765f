// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of store.S.
type MockStore struct {
	mock.Mock
}

func (s *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := s.Called(ctx, key)
	value, _ := args.Get(0).([]byte)
	return value, args.Error(1)
}

func (s *MockStore) Set(ctx context.Context, key string, value []byte) error {
	args := s.Called(ctx, key, value)
	return args.Error(0)
}

func (s *MockStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	args := s.Called(ctx, key, value)
	return args.Bool(0), args.Error(1)
}

func (s *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := s.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (s *MockStore) Delete(ctx context.Context, keys ...string) (int, error) {
	args := s.Called(ctx, keys)
	return args.Int(0), args.Error(1)
}

func (s *MockStore) Close() error {
	args := s.Called()
	return args.Error(0)
}

func (s *MockStore) Ping(ctx context.Context) error {
	args := s.Called(ctx)
	return args.Error(0)
}
