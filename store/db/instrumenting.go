// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"errors"

	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/db/metric"
)

type instrumentingStore struct {
	store.S
	measures metric.Measures
}

// NewInstrumentingStore decorates s with success and failure counters.
func NewInstrumentingStore(measures metric.Measures, s store.S) store.S {
	return &instrumentingStore{S: s, measures: measures}
}

func (s *instrumentingStore) observe(queryType string, err error) {
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		s.measures.QueryFailureCount.WithLabelValues(queryType).Add(1.0)
		return
	}
	s.measures.QuerySuccessCount.WithLabelValues(queryType).Add(1.0)
}

func (s *instrumentingStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.S.Get(ctx, key)
	s.observe(store.ReadType, err)
	return value, err
}

func (s *instrumentingStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.S.Set(ctx, key, value)
	s.observe(store.InsertType, err)
	return err
}

func (s *instrumentingStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := s.S.SetNX(ctx, key, value)
	s.observe(store.InsertType, err)
	return ok, err
}

func (s *instrumentingStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.S.Exists(ctx, key)
	s.observe(store.ExistsType, err)
	return ok, err
}

func (s *instrumentingStore) Delete(ctx context.Context, keys ...string) (int, error) {
	deleted, err := s.S.Delete(ctx, keys...)
	s.observe(store.DeleteType, err)
	if deleted > 0 {
		s.measures.DeletedKeysCount.WithLabelValues(store.DeleteType).Add(float64(deleted))
	}
	return deleted, err
}
