// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package content is the HTTP API over the record models.
package content

import (
	"context"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/contentcache/glossary"
	"github.com/xmidt-org/sallust"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// APIBase prefixes every route.
const APIBase = "/api/v1"

// RequestIDHeaderKey echoes the id every request is logged under.
const RequestIDHeaderKey = "X-Request-Id"

type Handler http.Handler

// Handlers are the API's routes.
type Handlers struct {
	Find    Handler
	Search  Handler
	Refresh Handler
	Destroy Handler
	Rebuild Handler
	Webhook Handler
}

type handlersIn struct {
	fx.In

	Catalog   Catalog
	Rebuilder Rebuilder
	Logger    *zap.Logger
}

// Provide wires the API on top of a populated registry and glossary index.
func Provide() fx.Option {
	return fx.Provide(
		NewCatalog,
		func(i *glossary.Index) Rebuilder { return i },
		func(in handlersIn) Handlers {
			return NewHandlers(in.Catalog, in.Rebuilder, in.Logger)
		},
	)
}

// setLogger puts a request scoped logger into the context.
func setLogger(logger *zap.Logger) kithttp.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		id := r.Header.Get(RequestIDHeaderKey)
		if id == "" {
			id = uuid.NewString()
		}
		return sallust.With(ctx, logger.With(
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("requestURL", r.URL.EscapedPath()),
		))
	}
}

func NewHandlers(c Catalog, b Rebuilder, logger *zap.Logger) Handlers {
	if logger == nil {
		logger = sallust.Default()
	}
	options := []kithttp.ServerOption{
		kithttp.ServerBefore(setLogger(logger)),
		kithttp.ServerErrorEncoder(encodeError),
	}

	return Handlers{
		Find:    kithttp.NewServer(newFindEndpoint(c), decodeFindRequest, encodeRecordResponse, options...),
		Search:  kithttp.NewServer(newSearchEndpoint(c), decodeSearchRequest, encodeSearchResponse, options...),
		Refresh: kithttp.NewServer(newRefreshEndpoint(c), decodeFindRequest, encodeRecordResponse, options...),
		Destroy: kithttp.NewServer(newDestroyEndpoint(c), decodeFindRequest, encodeJSON, options...),
		Rebuild: kithttp.NewServer(newRebuildEndpoint(c, b), decodeRebuildRequest, encodeJSON, options...),
		Webhook: kithttp.NewServer(newWebhookEndpoint(c), decodeWebhookRequest, encodeJSON, options...),
	}
}

// Routes mounts h on r. Reads are open; anything that writes to the cache
// goes through auth.
func Routes(r *mux.Router, h Handlers, auth alice.Chain) {
	entries := APIBase + "/entries/{" + contentTypeVarKey + "}"
	entry := entries + "/{" + idVarKey + "}"

	r.Handle(entry, h.Find).Methods(http.MethodGet)
	r.Handle(entries, h.Search).Methods(http.MethodGet)
	r.Handle(entry+"/refresh", auth.Then(h.Refresh)).Methods(http.MethodPost)
	r.Handle(entry, auth.Then(h.Destroy)).Methods(http.MethodDelete)
	r.Handle(APIBase+"/glossary/{"+contentTypeVarKey+"}/{"+attributeVarKey+"}", auth.Then(h.Rebuild)).Methods(http.MethodPost)
	r.Handle(APIBase+"/webhook", auth.Then(h.Webhook)).Methods(http.MethodPost)
}
