// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package resolver maps content type names to the handles that know how to
// find and hydrate records of that type.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/contentcache/model"
)

// Handle finds records of one content type. Linked entries found during
// hydration are resolved through FindLinked with the remaining depth budget.
type Handle interface {
	// ContentType is the origin's id of the content type.
	ContentType() string

	// Searchable lists the attributes with a secondary index.
	Searchable() []string

	FindLinked(ctx context.Context, id string, env model.Environment, depth int) (*model.Record, error)
}

type registration struct {
	ContentType string   `validate:"required"`
	Searchable  []string `validate:"unique,dive,required"`
}

// Registry is the table of known content types. It is filled at startup and
// only read afterwards, but is safe for concurrent use either way.
type Registry struct {
	scope    string
	validate *validator.Validate

	lock    sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry. Every name is looked up under
// scope, so registries for different model namespaces never collide.
func NewRegistry(scope string) *Registry {
	return &Registry{
		scope:    model.NormalizeName(scope),
		validate: validator.New(),
		handles:  make(map[string]Handle),
	}
}

func (r *Registry) key(name string) string {
	return r.scope + model.NormalizeName(name)
}

// Register adds h under its content type.
func (r *Registry) Register(h Handle) error {
	reg := registration{ContentType: h.ContentType()}
	for _, field := range h.Searchable() {
		reg.Searchable = append(reg.Searchable, model.NormalizeName(field))
	}
	if err := r.validate.Struct(reg); err != nil {
		return fmt.Errorf("%w: content type %q: %v", model.ErrArgument, h.ContentType(), err)
	}

	key := r.key(h.ContentType())
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.handles[key]; ok {
		return fmt.Errorf("%w: content type %q is already registered", model.ErrArgument, h.ContentType())
	}
	r.handles[key] = h
	return nil
}

// Search returns the handle registered for name, ignoring case and
// underscores.
func (r *Registry) Search(name string) (Handle, error) {
	r.lock.RLock()
	h, ok := r.handles[r.key(name)]
	r.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: content type %q is undefined", model.ErrClassNotFound, name)
	}
	return h, nil
}

// Handles returns every registered handle ordered by content type.
func (r *Registry) Handles() []Handle {
	r.lock.RLock()
	defer r.lock.RUnlock()
	handles := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].ContentType() < handles[j].ContentType()
	})
	return handles
}
