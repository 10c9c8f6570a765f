// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"sync"

	"github.com/xmidt-org/contentcache/store"
)

type InMem struct {
	data map[string][]byte
	lock sync.RWMutex
}

func NewInMem() *InMem {
	return &InMem{
		data: map[string][]byte{},
	}
}

func (i *InMem) Get(_ context.Context, key string) ([]byte, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()
	value, ok := i.data[key]
	if !ok {
		return nil, store.KeyNotFoundError{Key: key}
	}
	return clone(value), nil
}

func (i *InMem) Set(_ context.Context, key string, value []byte) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.data[key] = clone(value)
	return nil
}

func (i *InMem) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	if _, ok := i.data[key]; ok {
		return false, nil
	}
	i.data[key] = clone(value)
	return true, nil
}

func (i *InMem) Exists(_ context.Context, key string) (bool, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()
	_, ok := i.data[key]
	return ok, nil
}

func (i *InMem) Delete(_ context.Context, keys ...string) (int, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	var deleted int
	for _, key := range keys {
		if _, ok := i.data[key]; ok {
			delete(i.data, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored keys.
func (i *InMem) Len() int {
	i.lock.RLock()
	defer i.lock.RUnlock()
	return len(i.data)
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
