// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import "context"

const (
	// TypeLabel is for labeling metrics; if there is a single metric for
	// successful queries, the typeLabel and corresponding type can be used
	// when incrementing the metric.
	TypeLabel  = "type"
	InsertType = "insert"
	DeleteType = "delete"
	ReadType   = "read"
	ExistsType = "exists"
	PingType   = "ping"
)

// S is the key/value capability the cache layer is built on. Values are
// opaque bytes and carry no expiry; eviction is left to the backend.
type S interface {
	// Get returns the value stored at key. A missing key yields a
	// KeyNotFoundError.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// SetNX stores value at key only if the key is absent and reports whether
	// the write happened. Implementations must make the check and the write
	// atomic.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)

	// Exists reports whether key holds a value.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the given keys and returns how many of them existed.
	Delete(ctx context.Context, keys ...string) (int, error)
}
