// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/record"
)

// request URL path keys
const (
	contentTypeVarKey = "contentType"
	idVarKey          = "id"
	attributeVarKey   = "attribute"
)

// query parameters that tune reads and are never searched on
const (
	envParam    = "env"
	depthParam  = "depth"
	onlyParam   = "only"
	exceptParam = "except"
)

// TopicHeaderKey names the origin's webhook event.
const TopicHeaderKey = "X-Contentful-Topic"

const maxWebhookBody = 1 << 20

var (
	errContentTypeVarMissing = BadRequestErr{Message: "{contentType} URL path parameter missing"}
	errIDVarMissing          = BadRequestErr{Message: "{id} URL path parameter missing"}
	errAttributeVarMissing   = BadRequestErr{Message: "{attribute} URL path parameter missing"}
	errInvalidDepth          = BadRequestErr{Message: "depth must be an integer"}
	errTopicMissing          = BadRequestErr{Message: TopicHeaderKey + " header missing"}
	errWebhookBody           = BadRequestErr{Message: "failed to read webhook payload"}
	errWebhookEntry          = BadRequestErr{Message: "webhook payload needs sys.id and sys.contentType"}
)

// readOptions are the per-request record options.
type readOptions struct {
	env    *model.Environment
	depth  *int
	only   []string
	except []string
}

func (o readOptions) recordOptions() []record.Option {
	var opts []record.Option
	if o.env != nil {
		opts = append(opts, record.WithEnvironment(*o.env))
	}
	if o.depth != nil {
		opts = append(opts, record.WithDepth(*o.depth))
	}
	if len(o.only) > 0 {
		opts = append(opts, record.Only(o.only...))
	}
	if len(o.except) > 0 {
		opts = append(opts, record.Except(o.except...))
	}
	return opts
}

func (o readOptions) environment() model.Environment {
	if o.env == nil {
		return model.Published
	}
	return *o.env
}

type findRequest struct {
	contentType string
	id          string
	options     readOptions
}

type searchRequest struct {
	contentType string
	attrs       map[string]interface{}
	options     readOptions
}

type rebuildRequest struct {
	contentType string
	attribute   string
	options     readOptions
}

type webhookRequest struct {
	action      webhookAction
	env         model.Environment
	contentType string
	id          string
}

type recordsResponse struct {
	Total int             `json:"total"`
	Items []*model.Record `json:"items"`
}

type destroyResponse struct {
	Removed int `json:"removed"`
}

type rebuildResponse struct {
	Keys []string `json:"keys"`
}

type webhookResponse struct {
	Action  string        `json:"action"`
	ID      string        `json:"id"`
	Removed *int          `json:"removed,omitempty"`
	Record  *model.Record `json:"record,omitempty"`
}

func splitList(values []string) []string {
	var result []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func decodeReadOptions(q url.Values) (readOptions, error) {
	var o readOptions
	if v := q.Get(envParam); v != "" {
		env, err := model.ParseEnvironment(v)
		if err != nil {
			return o, BadRequestErr{Message: err.Error()}
		}
		o.env = &env
	}
	if v := q.Get(depthParam); v != "" {
		depth, err := cast.ToIntE(v)
		if err != nil {
			return o, errInvalidDepth
		}
		o.depth = &depth
	}
	o.only = splitList(q[onlyParam])
	o.except = splitList(q[exceptParam])
	return o, nil
}

func contentTypeVar(r *http.Request) (string, error) {
	contentType, ok := mux.Vars(r)[contentTypeVarKey]
	if !ok || contentType == "" {
		return "", errContentTypeVarMissing
	}
	return contentType, nil
}

func decodeFindRequest(_ context.Context, r *http.Request) (interface{}, error) {
	contentType, err := contentTypeVar(r)
	if err != nil {
		return nil, err
	}
	id, ok := mux.Vars(r)[idVarKey]
	if !ok {
		return nil, errIDVarMissing
	}
	options, err := decodeReadOptions(r.URL.Query())
	if err != nil {
		return nil, err
	}
	return &findRequest{contentType: contentType, id: id, options: options}, nil
}

func decodeSearchRequest(_ context.Context, r *http.Request) (interface{}, error) {
	contentType, err := contentTypeVar(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	options, err := decodeReadOptions(q)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]interface{})
	for name, values := range q {
		switch name {
		case envParam, depthParam, onlyParam, exceptParam:
			continue
		}
		if len(values) > 0 {
			attrs[name] = values[0]
		}
	}
	return &searchRequest{contentType: contentType, attrs: attrs, options: options}, nil
}

func decodeRebuildRequest(_ context.Context, r *http.Request) (interface{}, error) {
	contentType, err := contentTypeVar(r)
	if err != nil {
		return nil, err
	}
	attribute, ok := mux.Vars(r)[attributeVarKey]
	if !ok || attribute == "" {
		return nil, errAttributeVarMissing
	}
	options, err := decodeReadOptions(r.URL.Query())
	if err != nil {
		return nil, err
	}
	return &rebuildRequest{contentType: contentType, attribute: attribute, options: options}, nil
}

func decodeWebhookRequest(_ context.Context, r *http.Request) (interface{}, error) {
	topic := r.Header.Get(TopicHeaderKey)
	if topic == "" {
		return nil, errTopicMissing
	}
	action, env, err := parseTopic(topic)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, errWebhookBody
	}
	var entry model.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errWebhookBody
	}
	if entry.Sys.ID == "" || entry.ContentTypeID() == "" {
		return nil, errWebhookEntry
	}

	return &webhookRequest{
		action:      action,
		env:         env,
		contentType: entry.ContentTypeID(),
		id:          entry.Sys.ID,
	}, nil
}

func encodeJSON(_ context.Context, rw http.ResponseWriter, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json")
	_, err = rw.Write(data)
	return err
}

func encodeRecordResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	r, ok := response.(*model.Record)
	if !ok {
		return ErrCasting
	}
	return encodeJSON(ctx, rw, r)
}

func encodeSearchResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	switch r := response.(type) {
	case *model.Record:
		return encodeJSON(ctx, rw, r)
	case []*model.Record:
		return encodeJSON(ctx, rw, recordsResponse{Total: len(r), Items: r})
	}
	return ErrCasting
}
