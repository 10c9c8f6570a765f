// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package record is the entry point for reading content: one Model per
// content type finds, refreshes and invalidates hydrated records.
package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"github.com/xmidt-org/contentcache/hydrate"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/request"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const idRules = "required,max=64,excludesall=/?&#"

var (
	ErrNilCache    = errors.New("request cache cannot be nil")
	ErrNilHydrator = errors.New("hydrator cannot be nil")
	ErrNilIndex    = errors.New("glossary index cannot be nil")
	ErrNilStore    = errors.New("store cannot be nil")
)

// Cache is the part of the request cache a Model needs.
type Cache interface {
	Fetch(ctx context.Context, src model.Source, q model.Query, action request.Action, env model.Environment) (*model.Payload, error)
	Cached(ctx context.Context, src model.Source, q model.Query, env model.Environment) (*model.Payload, bool, error)
	Key(src model.Source, env model.Environment, q model.Query) string
}

// Hydrator builds records from payloads.
type Hydrator interface {
	Hydrate(ctx context.Context, payload *model.Payload, env model.Environment, opts hydrate.Options) (*model.Record, error)
}

// Index is the secondary index.
type Index interface {
	Ensure(ctx context.Context, src model.Source, contentType string, r *model.Record, fields []string) ([]string, error)
	Lookup(ctx context.Context, src model.Source, contentType, value string) (string, error)
	Keys(src model.Source, contentType string, r *model.Record, fields []string) []string
}

// Config describes one content type.
type Config struct {
	// ContentType is the origin's content type id, e.g. blogPost.
	ContentType string `validate:"required"`

	// Source is where records of this type live.
	Source model.Source

	// Searchable lists the fields that are indexed and usable with FindBy.
	Searchable []string `validate:"unique,dive,required"`

	DefaultEnvironment model.Environment

	// DefaultDepth is the link depth used when no WithDepth option is given.
	DefaultDepth int
}

// Deps are the collaborators shared by every Model.
type Deps struct {
	Cache    Cache
	Hydrator Hydrator
	Index    Index
	Store    store.S
	Logger   *zap.Logger
}

// Model reads records of one content type.
type Model struct {
	config   Config
	cache    Cache
	hydrator Hydrator
	index    Index
	store    store.S
	validate *validator.Validate
	logger   *zap.Logger
}

// New validates config and builds a Model.
func New(config Config, deps Deps) (*Model, error) {
	switch {
	case deps.Cache == nil:
		return nil, ErrNilCache
	case deps.Hydrator == nil:
		return nil, ErrNilHydrator
	case deps.Index == nil:
		return nil, ErrNilIndex
	case deps.Store == nil:
		return nil, ErrNilStore
	}

	v := validator.New()
	if err := v.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: content type %q: %v", model.ErrArgument, config.ContentType, err)
	}
	if deps.Logger == nil {
		deps.Logger = sallust.Default()
	}
	return &Model{
		config:   config,
		cache:    deps.Cache,
		hydrator: deps.Hydrator,
		index:    deps.Index,
		store:    deps.Store,
		validate: v,
		logger:   deps.Logger.With(zap.String("contentType", config.ContentType)),
	}, nil
}

// ContentType returns the origin's id of the content type.
func (m *Model) ContentType() string {
	return m.config.ContentType
}

// Searchable returns the indexed fields.
func (m *Model) Searchable() []string {
	return m.config.Searchable
}

// Source returns the source records are read from.
func (m *Model) Source() model.Source {
	return m.config.Source
}

func (m *Model) options(opts []Option) options {
	o := options{env: m.config.DefaultEnvironment, depth: m.config.DefaultDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (m *Model) getLogger(ctx context.Context) *zap.Logger {
	if l := sallust.Get(ctx); l != nil {
		return l.With(zap.String("contentType", m.config.ContentType))
	}
	return m.logger
}

func (m *Model) idQuery(id string) model.Query {
	return model.Query{"sys.id": id, "content_type": m.config.ContentType}
}

func (m *Model) checkID(id string) error {
	if err := m.validate.Var(id, idRules); err != nil || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: invalid id %q", model.ErrArgument, id)
	}
	return nil
}

// Find returns the record with id.
func (m *Model) Find(ctx context.Context, id string, opts ...Option) (*model.Record, error) {
	return m.load(ctx, id, request.Read, m.options(opts))
}

// FindLinked resolves a linked entry during hydration of another record.
func (m *Model) FindLinked(ctx context.Context, id string, env model.Environment, depth int) (*model.Record, error) {
	return m.Find(ctx, id, WithEnvironment(env), WithDepth(depth))
}

// Update refetches the record with id from the origin, replacing whatever is
// cached.
func (m *Model) Update(ctx context.Context, id string, opts ...Option) (*model.Record, error) {
	return m.load(ctx, id, request.ForceRefresh, m.options(opts))
}

func (m *Model) load(ctx context.Context, id string, action request.Action, o options) (*model.Record, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}
	payload, err := m.cache.Fetch(ctx, m.config.Source, m.idQuery(id), action, o.env)
	if err != nil {
		return nil, err
	}
	return m.hydrate(ctx, payload, o)
}

func (m *Model) hydrate(ctx context.Context, payload *model.Payload, o options) (*model.Record, error) {
	r, err := m.hydrator.Hydrate(ctx, payload, o.env, hydrate.Options{Depth: o.depth, Only: o.only, Except: o.except})
	if err != nil {
		return nil, err
	}
	if len(m.config.Searchable) > 0 {
		if _, err := m.index.Ensure(ctx, m.config.Source, m.config.ContentType, r, m.config.Searchable); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FindBy returns the record whose searchable attributes match attrs. Every
// key must be a searchable field. Keys are tried in sorted order and the first
// one found in the index wins.
func (m *Model) FindBy(ctx context.Context, attrs map[string]interface{}, opts ...Option) (*model.Record, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("%w: no attributes given", model.ErrArgument)
	}

	searchable := make(map[string]bool, len(m.config.Searchable))
	for _, field := range m.config.Searchable {
		searchable[model.NormalizeName(field)] = true
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if !searchable[model.NormalizeName(name)] {
			return nil, fmt.Errorf("%w: %s is not a searchable field of %s", model.ErrArgument, name, m.config.ContentType)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, err := cast.ToStringE(attrs[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrArgument, name, err)
		}
		id, err := m.index.Lookup(ctx, m.config.Source, m.config.ContentType, value)
		if errors.Is(err, model.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return m.Find(ctx, id, opts...)
	}
	return nil, fmt.Errorf("%w: missing attribute in glossary", model.ErrRecordNotFound)
}

// Destroy removes the cached query for id in the targeted environment along
// with the index entries of its current searchable values, which are read
// from the cached payload. It returns how many keys were removed.
func (m *Model) Destroy(ctx context.Context, id string, opts ...Option) (int, error) {
	if err := m.checkID(id); err != nil {
		return 0, err
	}
	o := m.options(opts)
	q := m.idQuery(id)
	keys := []string{m.cache.Key(m.config.Source, o.env, q)}

	if len(m.config.Searchable) > 0 {
		payload, found, err := m.cache.Cached(ctx, m.config.Source, q, o.env)
		switch {
		case errors.Is(err, request.ErrCorruptPayload):
			m.getLogger(ctx).Warn("dropping corrupt payload without its index entries", zap.String("id", id), zap.Error(err))
		case err != nil:
			return 0, err
		case found:
			r, err := m.hydrator.Hydrate(ctx, payload, o.env, hydrate.Options{Depth: 0})
			if err != nil {
				m.getLogger(ctx).Warn("dropping unreadable payload without its index entries", zap.String("id", id), zap.Error(err))
				break
			}
			keys = append(keys, m.index.Keys(m.config.Source, m.config.ContentType, r, m.config.Searchable)...)
		}
	}
	return m.delete(ctx, id, keys)
}

// DestroyRecord is Destroy with the index entries computed from r itself.
func (m *Model) DestroyRecord(ctx context.Context, r *model.Record, opts ...Option) (int, error) {
	if r == nil {
		return 0, fmt.Errorf("%w: record cannot be nil", model.ErrArgument)
	}
	if err := m.checkID(r.ID); err != nil {
		return 0, err
	}
	o := m.options(opts)
	keys := []string{m.cache.Key(m.config.Source, o.env, m.idQuery(r.ID))}
	keys = append(keys, m.index.Keys(m.config.Source, m.config.ContentType, r, m.config.Searchable)...)
	return m.delete(ctx, r.ID, keys)
}

func (m *Model) delete(ctx context.Context, id string, keys []string) (int, error) {
	n, err := m.store.Delete(ctx, keys...)
	if err != nil {
		return 0, err
	}
	m.getLogger(ctx).Info("destroyed record", zap.String("id", id), zap.Int("removed", n))
	return n, nil
}

// All returns every record of the content type. Each item is hydrated on its
// own with the includes of the whole response.
func (m *Model) All(ctx context.Context, opts ...Option) ([]*model.Record, error) {
	o := m.options(opts)
	payload, err := m.cache.Fetch(ctx, m.config.Source, model.Query{"content_type": m.config.ContentType}, request.Read, o.env)
	if err != nil {
		return nil, err
	}
	records := make([]*model.Record, 0, len(payload.Items))
	for i := range payload.Items {
		r, err := m.hydrate(ctx, payload.Single(i), o)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
