// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package storetest holds the conformance checks every store.S backend must
// pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/contentcache/store"
)

var (
	GenericTestKey   = "xxxx/cdn/content_type-page/include-1/sys.id-XXXX"
	GenericTestValue = []byte(`{"total":1,"items":[{"sys":{"id":"XXXX"},"fields":{"title":"What a Wonderful World"}}]}`)
	GenericIndexKey  = "xxxx/page/what-a-wonderful-world"
)

// StoreTest runs the basic contract checks against s. The store is expected
// to be empty.
func StoreTest(s store.S, t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	t.Log("Basic Test")
	_, err := s.Get(ctx, GenericTestKey)
	assert.True(errors.Is(err, store.ErrKeyNotFound), "expected key not found, got %v", err)

	ok, err := s.Exists(ctx, GenericTestKey)
	require.NoError(err)
	assert.False(ok)

	require.NoError(s.Set(ctx, GenericTestKey, GenericTestValue))
	value, err := s.Get(ctx, GenericTestKey)
	require.NoError(err)
	assert.Equal(GenericTestValue, value)

	ok, err = s.Exists(ctx, GenericTestKey)
	require.NoError(err)
	assert.True(ok)

	t.Log("Overwrite Test")
	require.NoError(s.Set(ctx, GenericTestKey, []byte(`{"total":1}`)))
	value, err = s.Get(ctx, GenericTestKey)
	require.NoError(err)
	assert.Equal([]byte(`{"total":1}`), value)

	t.Log("Set If Absent Test")
	ok, err = s.SetNX(ctx, GenericIndexKey, []byte("XXXX"))
	require.NoError(err)
	assert.True(ok)

	ok, err = s.SetNX(ctx, GenericIndexKey, []byte("YYYY"))
	require.NoError(err)
	assert.False(ok)

	value, err = s.Get(ctx, GenericIndexKey)
	require.NoError(err)
	assert.Equal([]byte("XXXX"), value)

	t.Log("Delete Test")
	deleted, err := s.Delete(ctx, GenericTestKey, GenericIndexKey, "xxxx/page/missing")
	require.NoError(err)
	assert.Equal(2, deleted)

	_, err = s.Get(ctx, GenericTestKey)
	assert.True(errors.Is(err, store.ErrKeyNotFound))

	deleted, err = s.Delete(ctx, GenericTestKey)
	require.NoError(err)
	assert.Equal(0, deleted)

	deleted, err = s.Delete(ctx)
	require.NoError(err)
	assert.Equal(0, deleted)
}

// SetNXRaceTest checks that exactly one of many concurrent writers wins the
// same key.
func SetNXRaceTest(s store.S, t *testing.T) {
	const writers = 8
	var (
		wg   sync.WaitGroup
		lock sync.Mutex
		won  []string
	)

	ctx := context.Background()
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("writer-%d", w)
			ok, err := s.SetNX(ctx, "xxxx/page/race", []byte(id))
			assert.NoError(t, err)
			if ok {
				lock.Lock()
				won = append(won, id)
				lock.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, won, 1)
	value, err := s.Get(ctx, "xxxx/page/race")
	require.NoError(t, err)
	assert.Equal(t, won[0], string(value))
}
