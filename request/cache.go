// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package request implements the cache-aside protocol between the cache
// store and the content origin.
package request

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xmidt-org/contentcache/keys"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/origin"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// ErrCorruptPayload is returned when a cached payload cannot be parsed. It is
// never treated as a miss.
var ErrCorruptPayload = errors.New("cached payload is corrupt")

var errParsePayload = errors.New("origin payload could not be parsed")

const errWrappedFmt = "%w: %s"

var gzipMagic = []byte{0x1f, 0x8b}

// Action selects between the read-through and the write-through path.
type Action int

const (
	// Read serves from the cache and only asks the origin on a miss.
	Read Action = iota

	// ForceRefresh always asks the origin and overwrites the cache.
	ForceRefresh
)

func (a Action) String() string {
	if a == ForceRefresh {
		return "force_refresh"
	}
	return "read"
}

// Origin is the part of the origin client the cache needs.
type Origin interface {
	Query(ctx context.Context, src model.Source, env model.Environment, q model.Query) (origin.Response, error)
}

// Cache fetches origin payloads through the cache store.
type Cache struct {
	store    store.S
	origin   Origin
	measures *Measures
	logger   *zap.Logger
}

// NewCache builds a Cache. A nil logger falls back to sallust's default.
func NewCache(s store.S, o Origin, measures *Measures, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = sallust.Default()
	}
	if measures == nil {
		measures = NewMeasures()
	}
	return &Cache{store: s, origin: o, measures: measures, logger: logger}
}

// Key returns the cache key of q as fetched from env, including the forced
// include=1 parameter.
func (c *Cache) Key(src model.Source, env model.Environment, q model.Query) string {
	return keys.Query(src.SpaceID, env.Endpoint(), q.With("include", "1"))
}

// Fetch returns the payload for q, from the cache when action is Read and the
// key is present, otherwise from the origin.
func (c *Cache) Fetch(ctx context.Context, src model.Source, q model.Query, action Action, env model.Environment) (*model.Payload, error) {
	key := c.Key(src, env, q)
	l := sallust.Get(ctx)
	if l == nil {
		l = c.logger
	}
	l = l.With(zap.String("key", key), zap.Stringer("action", action))

	if action == Read {
		payload, found, err := c.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			c.measures.Lookups.WithLabelValues(HitOutcome).Add(1.0)
			l.Debug("cache hit")
			return payload, nil
		}
		c.measures.Lookups.WithLabelValues(MissOutcome).Add(1.0)
		l.Debug("cache miss")
	} else {
		c.measures.Lookups.WithLabelValues(RefreshOutcome).Add(1.0)
	}

	resp, err := c.origin.Query(ctx, src, env, q)
	if err != nil {
		return nil, err
	}
	if err := classify(resp.Code); err != nil {
		return nil, err
	}

	text := normalize(resp.Body)
	var compact bytes.Buffer
	if err := json.Compact(&compact, text); err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errParsePayload, err.Error())
	}

	var payload model.Payload
	if err := json.Unmarshal(compact.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errParsePayload, err.Error())
	}
	if payload.Total == 0 {
		return nil, fmt.Errorf("%w: no entries match %s", model.ErrRecordNotFound, key)
	}

	if err := c.store.Set(ctx, key, compact.Bytes()); err != nil {
		return nil, err
	}
	l.Debug("cached origin payload", zap.Int("total", payload.Total))
	return &payload, nil
}

// Cached returns the payload stored for q without ever calling the origin.
// The boolean is false when nothing is cached.
func (c *Cache) Cached(ctx context.Context, src model.Source, q model.Query, env model.Environment) (*model.Payload, bool, error) {
	return c.read(ctx, c.Key(src, env, q))
}

func (c *Cache) read(ctx context.Context, key string) (*model.Payload, bool, error) {
	exists, err := c.store.Exists(ctx, key)
	if err != nil || !exists {
		return nil, false, err
	}
	value, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		// removed since the exists check
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var payload model.Payload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, false, fmt.Errorf("%w: key %s: %v", ErrCorruptPayload, key, err)
	}
	return &payload, true, nil
}

// classify maps a non-success origin status to the error taxonomy.
func classify(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		return fmt.Errorf("%w: origin responded %d", model.ErrRecordNotFound, code)
	default:
		return fmt.Errorf("%w: origin responded %d", model.ErrInternalServer, code)
	}
}

// normalize decompresses a gzip body. Anything that fails to decompress is
// treated as plain text.
func normalize(body []byte) []byte {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return body
	}
	return plain
}
