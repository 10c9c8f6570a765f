// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package glossary maintains the secondary index from attribute values to
// record ids, which is what lets records be found by something other than
// their id.
package glossary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cast"
	"github.com/xmidt-org/contentcache/keys"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/request"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// PageSize is the number of entries requested per page by Bulk.
const PageSize = 1000

// Fetcher is the part of the request cache the index needs.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source, q model.Query, action request.Action, env model.Environment) (*model.Payload, error)
}

// Index reads and writes attribute index entries.
type Index struct {
	store   store.S
	fetcher Fetcher
	logger  *zap.Logger
}

// New creates an Index. A nil logger falls back to sallust's default.
func New(s store.S, f Fetcher, logger *zap.Logger) *Index {
	if logger == nil {
		logger = sallust.Default()
	}
	return &Index{store: s, fetcher: f, logger: logger}
}

func (i *Index) getLogger(ctx context.Context) *zap.Logger {
	if l := sallust.Get(ctx); l != nil {
		return l
	}
	return i.logger
}

// Ensure indexes the given fields of record. Existing entries are left alone,
// so the first record to claim a value keeps it. Every field is checked before
// anything is written.
func (i *Index) Ensure(ctx context.Context, src model.Source, contentType string, record *model.Record, fields []string) ([]string, error) {
	values := make([]string, 0, len(fields))
	for _, field := range fields {
		v, ok := record.Get(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s was not found in entry %s", model.ErrArgument, field, record.ID)
		}
		s, err := indexValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s of entry %s: %v", model.ErrArgument, field, record.ID, err)
		}
		values = append(values, s)
	}

	l := i.getLogger(ctx)
	created := make([]string, 0, len(values))
	for _, value := range values {
		key := keys.AttributeIndex(src.SpaceID, contentType, value)
		ok, err := i.store.SetNX(ctx, key, []byte(record.ID))
		if err != nil {
			return nil, err
		}
		if ok {
			l.Info("created index entry", zap.String("key", key), zap.String("id", record.ID))
		}
		created = append(created, key)
	}
	return created, nil
}

// Bulk rebuilds the index of attribute for every entry of contentType,
// overwriting whatever is stored. Pages are always fetched fresh from the
// origin. The first entry without a usable value aborts the rebuild.
func (i *Index) Bulk(ctx context.Context, src model.Source, contentType, attribute string, env model.Environment) ([]string, error) {
	l := i.getLogger(ctx).With(zap.String("contentType", contentType), zap.String("attribute", attribute))
	var written []string
	for skip := 0; ; {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		q := model.Query{
			"content_type": contentType,
			"limit":        strconv.Itoa(PageSize),
			"skip":         strconv.Itoa(skip),
		}
		payload, err := i.fetcher.Fetch(ctx, src, q, request.ForceRefresh, env)
		if errors.Is(err, model.ErrRecordNotFound) && skip == 0 {
			l.Info("no entries to index")
			return written, nil
		}
		if err != nil {
			return written, err
		}

		for _, entry := range payload.Items {
			value, err := rawIndexValue(entry, attribute)
			if err != nil {
				return written, err
			}
			key := keys.AttributeIndex(src.SpaceID, contentType, value)
			if err := i.store.Set(ctx, key, []byte(entry.Sys.ID)); err != nil {
				return written, err
			}
			written = append(written, key)
		}

		skip += len(payload.Items)
		if len(payload.Items) == 0 || skip >= payload.Total {
			break
		}
	}
	l.Info("rebuilt index", zap.Int("entries", len(written)))
	return written, nil
}

// Lookup returns the id of the record whose indexed attribute equals value.
func (i *Index) Lookup(ctx context.Context, src model.Source, contentType, value string) (string, error) {
	key := keys.AttributeIndex(src.SpaceID, contentType, value)
	id, err := i.store.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: no %s indexed under %q", model.ErrRecordNotFound, contentType, value)
	}
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Keys returns the index keys for the current values of fields in record.
// Fields that are absent or cannot be indexed are skipped.
func (i *Index) Keys(src model.Source, contentType string, record *model.Record, fields []string) []string {
	result := make([]string, 0, len(fields))
	for _, field := range fields {
		v, ok := record.Get(field)
		if !ok {
			continue
		}
		s, err := indexValue(v)
		if err != nil {
			continue
		}
		result = append(result, keys.AttributeIndex(src.SpaceID, contentType, s))
	}
	return result
}

var errNotIndexable = errors.New("value cannot be indexed")

func indexValue(v model.Value) (string, error) {
	if v.IsReference() || v.IsSequence() {
		return "", fmt.Errorf("%w: %s", errNotIndexable, v.Kind)
	}
	return scalarString(v.Scalar)
}

func scalarString(v interface{}) (string, error) {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}:
		return "", fmt.Errorf("%w: %T", errNotIndexable, v)
	}
	return cast.ToStringE(v)
}

// rawIndexValue reads attribute straight from an unhydrated entry.
func rawIndexValue(e model.Entry, attribute string) (string, error) {
	raw, ok := e.Fields[attribute]
	if !ok {
		want := model.NormalizeName(attribute)
		for name, r := range e.Fields {
			if model.NormalizeName(name) == want {
				raw, ok = r, true
				break
			}
		}
	}
	if !ok {
		return "", fmt.Errorf("%w: %s was not found in entry %s", model.ErrArgument, attribute, e.Sys.ID)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: %s of entry %s: %v", model.ErrArgument, attribute, e.Sys.ID, err)
	}
	s, err := scalarString(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s of entry %s: %v", model.ErrArgument, attribute, e.Sys.ID, err)
	}
	return s, nil
}
