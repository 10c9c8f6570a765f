// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/record"
	"github.com/xmidt-org/contentcache/resolver"
)

// Model is what the API needs from a content type's record.Model.
type Model interface {
	ContentType() string
	Source() model.Source
	Find(ctx context.Context, id string, opts ...record.Option) (*model.Record, error)
	FindBy(ctx context.Context, attrs map[string]interface{}, opts ...record.Option) (*model.Record, error)
	Update(ctx context.Context, id string, opts ...record.Option) (*model.Record, error)
	Destroy(ctx context.Context, id string, opts ...record.Option) (int, error)
	All(ctx context.Context, opts ...record.Option) ([]*model.Record, error)
}

// Catalog finds the Model of a content type.
type Catalog interface {
	Lookup(contentType string) (Model, error)
}

// Rebuilder rebuilds the secondary index of one attribute.
type Rebuilder interface {
	Bulk(ctx context.Context, src model.Source, contentType, attribute string, env model.Environment) ([]string, error)
}

type registryCatalog struct {
	registry *resolver.Registry
}

// NewCatalog serves the Models registered with r.
func NewCatalog(r *resolver.Registry) Catalog {
	return registryCatalog{registry: r}
}

func (c registryCatalog) Lookup(contentType string) (Model, error) {
	h, err := c.registry.Search(contentType)
	if err != nil {
		return nil, err
	}
	m, ok := h.(Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not served", model.ErrClassNotFound, contentType)
	}
	return m, nil
}

func newFindEndpoint(c Catalog) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*findRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}
		return m.Find(ctx, req.id, req.options.recordOptions()...)
	}
}

func newSearchEndpoint(c Catalog) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*searchRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}
		if len(req.attrs) == 0 {
			return m.All(ctx, req.options.recordOptions()...)
		}
		return m.FindBy(ctx, req.attrs, req.options.recordOptions()...)
	}
}

func newRefreshEndpoint(c Catalog) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*findRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}
		return m.Update(ctx, req.id, req.options.recordOptions()...)
	}
}

func newDestroyEndpoint(c Catalog) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*findRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}
		n, err := m.Destroy(ctx, req.id, req.options.recordOptions()...)
		if err != nil {
			return nil, err
		}
		return &destroyResponse{Removed: n}, nil
	}
}

func newRebuildEndpoint(c Catalog, b Rebuilder) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*rebuildRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}
		written, err := b.Bulk(ctx, m.Source(), m.ContentType(), req.attribute, req.options.environment())
		if err != nil {
			return nil, err
		}
		return &rebuildResponse{Keys: written}, nil
	}
}

func newWebhookEndpoint(c Catalog) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*webhookRequest)
		m, err := c.Lookup(req.contentType)
		if err != nil {
			return nil, err
		}

		resp := &webhookResponse{Action: req.action.String(), ID: req.id}
		switch req.action {
		case destroyAction:
			n, err := m.Destroy(ctx, req.id, record.WithEnvironment(req.env))
			if err != nil {
				return nil, err
			}
			resp.Removed = &n
		default:
			r, err := m.Update(ctx, req.id, record.WithEnvironment(req.env))
			if err != nil {
				return nil, err
			}
			resp.Record = r
		}
		return resp, nil
	}
}
