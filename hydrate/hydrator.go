// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package hydrate turns an origin payload into a Record, resolving the links
// of its root entry through the includes side-table.
package hydrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/resolver"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Resolver finds the handle of a content type.
type Resolver interface {
	Search(name string) (resolver.Handle, error)
}

// Options bound a single hydration.
type Options struct {
	// Depth is the number of link levels to resolve. Zero resolves no
	// links, model.UnlimitedDepth (or any negative value) resolves all.
	Depth int

	// Only restricts link resolution to these fields.
	Only []string

	// Except skips link resolution for these fields.
	Except []string
}

// Hydrator builds Records from payloads.
type Hydrator struct {
	resolver Resolver
	logger   *zap.Logger
}

// New creates a Hydrator. A nil logger falls back to sallust's default.
func New(r Resolver, logger *zap.Logger) *Hydrator {
	if logger == nil {
		logger = sallust.Default()
	}
	return &Hydrator{resolver: r, logger: logger}
}

// pass holds the state of one Hydrate call.
type pass struct {
	ctx      context.Context
	env      model.Environment
	payload  *model.Payload
	opts     Options
	only     map[string]bool
	except   map[string]bool
	resolved map[string]*model.Record
	assets   map[string]*model.Asset
	logger   *zap.Logger
}

// Hydrate builds the Record for the first item of payload. Linked entries of
// the includes side-table are resolved through their type's handle with one
// less level of depth; links that resolve to ErrRecordNotFound are dropped.
func (h *Hydrator) Hydrate(ctx context.Context, payload *model.Payload, env model.Environment, opts Options) (*model.Record, error) {
	if payload == nil || len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: payload has no items", model.ErrRecordNotFound)
	}
	root := payload.Items[0]

	l := sallust.Get(ctx)
	if l == nil {
		l = h.logger
	}
	p := &pass{
		ctx:      ctx,
		env:      env,
		payload:  payload,
		opts:     opts,
		only:     nameSet(opts.Only),
		except:   nameSet(opts.Except),
		resolved: make(map[string]*model.Record),
		logger:   l.With(zap.String("id", root.Sys.ID)),
	}

	fields, err := decodeFields(root)
	if err != nil {
		return nil, err
	}

	if err := h.resolveIncludes(p, linkOwners(fields)); err != nil {
		return nil, err
	}
	if err := p.indexAssets(); err != nil {
		return nil, err
	}

	record := &model.Record{
		ID:          root.Sys.ID,
		ContentType: root.ContentTypeID(),
		Fields:      make(map[string]model.Value, len(fields)),
	}
	for name, raw := range fields {
		if v, ok := p.value(name, raw); ok {
			record.Fields[name] = v
		}
	}
	return record, nil
}

func (h *Hydrator) resolveIncludes(p *pass, owners map[string][]string) error {
	if p.opts.Depth == 0 {
		return nil
	}
	next := p.opts.Depth - 1
	if p.opts.Depth < 0 {
		next = model.UnlimitedDepth
	}

	for _, entry := range p.payload.Includes.Entry {
		id := entry.Sys.ID
		field, ok := p.allowedOwner(owners[id])
		if !ok {
			continue
		}
		if _, done := p.resolved[id]; done {
			continue
		}

		handle, err := h.resolver.Search(entry.ContentTypeID())
		if err != nil {
			return err
		}
		linked, err := handle.FindLinked(p.ctx, id, p.env, next)
		if errors.Is(err, model.ErrRecordNotFound) {
			p.logger.Debug("dropping broken link", zap.String("field", field), zap.String("link", id))
			continue
		}
		if err != nil {
			return err
		}
		p.resolved[id] = linked
	}
	return nil
}

func (p *pass) allowed(field string) bool {
	name := model.NormalizeName(field)
	if len(p.only) > 0 && !p.only[name] {
		return false
	}
	return !p.except[name]
}

// allowedOwner returns the first of fields that passes the filters.
func (p *pass) allowedOwner(fields []string) (string, bool) {
	for _, field := range fields {
		if p.allowed(field) {
			return field, true
		}
	}
	return "", false
}

func (p *pass) indexAssets() error {
	p.assets = make(map[string]*model.Asset, len(p.payload.Includes.Asset))
	for _, entry := range p.payload.Includes.Asset {
		a, err := model.NewAsset(entry)
		if err != nil {
			return err
		}
		p.assets[a.ID] = a
	}
	return nil
}

// value converts one decoded field. The boolean is false for values that are
// omitted from the record: nulls, empty sequences, unresolved links and entry
// links of a filtered field.
func (p *pass) value(name string, raw interface{}) (model.Value, bool) {
	entries := p.allowed(name)
	switch v := raw.(type) {
	case nil:
		return model.Value{}, false
	case []interface{}:
		if len(v) == 0 {
			return model.Value{}, false
		}
		if !allLinks(v) {
			return model.ScalarValue(v), true
		}
		list := make([]model.Value, 0, len(v))
		for _, item := range v {
			if linked, ok := p.link(linkID(item), entries); ok {
				list = append(list, linked)
			}
		}
		if len(list) == 0 {
			return model.Value{}, false
		}
		return model.ListValue(list), true
	case map[string]interface{}:
		id := linkID(v)
		if id == "" {
			return model.ScalarValue(v), true
		}
		return p.link(id, entries)
	}
	return model.ScalarValue(raw), true
}

// link resolves a link id, assets first. Entries are only attached when
// entries is set.
func (p *pass) link(id string, entries bool) (model.Value, bool) {
	if a, ok := p.assets[id]; ok {
		return model.AssetValue(a), true
	}
	if r, ok := p.resolved[id]; ok && entries {
		return model.EntryValue(r), true
	}
	return model.Value{}, false
}

func decodeFields(e model.Entry) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(e.Fields))
	for name, raw := range e.Fields {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("entry %s field %s: %w", e.Sys.ID, name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

// linkOwners maps every linked id of the root entry to the fields holding it.
// Field names are sorted so the owner reported for an id is stable.
func linkOwners(fields map[string]interface{}) map[string][]string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	owners := make(map[string][]string)
	add := func(id, name string) {
		if id == "" {
			return
		}
		for _, owner := range owners[id] {
			if owner == name {
				return
			}
		}
		owners[id] = append(owners[id], name)
	}
	for _, name := range names {
		switch v := fields[name].(type) {
		case []interface{}:
			for _, item := range v {
				add(linkID(item), name)
			}
		default:
			add(linkID(v), name)
		}
	}
	return owners
}

// linkID returns sys.id of a link object, or "" if v is not one.
func linkID(v interface{}) string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	sys, ok := obj["sys"].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := sys["id"].(string)
	return id
}

func allLinks(items []interface{}) bool {
	for _, item := range items {
		if linkID(item) == "" {
			return false
		}
	}
	return true
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[model.NormalizeName(name)] = true
	}
	return set
}
