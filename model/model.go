// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnlimitedDepth disables the link depth budget during hydration.
const UnlimitedDepth = -1

// Environment selects which variant of a source's content is read.
type Environment int

const (
	Published Environment = iota
	Preview
)

// String returns the configuration name of the environment.
func (e Environment) String() string {
	switch e {
	case Published:
		return "published"
	case Preview:
		return "preview"
	}
	return "unknown"
}

// Endpoint returns the cache namespace (and origin host prefix) for the
// environment.
func (e Environment) Endpoint() string {
	if e == Preview {
		return "preview"
	}
	return "cdn"
}

// ParseEnvironment accepts published, cdn or preview, ignoring case.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "published", "cdn":
		return Published, nil
	case "preview":
		return Preview, nil
	}
	return Published, fmt.Errorf("%w: unknown environment %q", ErrArgument, s)
}

// Source is a named content origin with one credential per environment.
type Source struct {
	// Name is the configuration name of the source.
	Name string `json:"name"`

	// SpaceID identifies the source at the origin.
	SpaceID string `json:"spaceID" validate:"required"`

	// AccessToken authenticates requests for published content.
	AccessToken string `json:"-"`

	// PreviewAccessToken authenticates requests for preview content.
	PreviewAccessToken string `json:"-"`
}

// Token returns the credential for the given environment.
func (s Source) Token(env Environment) string {
	if env == Preview {
		return s.PreviewAccessToken
	}
	return s.AccessToken
}

// Query holds the parameters of one origin request. Order is irrelevant.
type Query map[string]string

// With returns a copy of q with key set to value.
func (q Query) With(key, value string) Query {
	c := make(Query, len(q)+1)
	for k, v := range q {
		c[k] = v
	}
	c[key] = value
	return c
}

// Link is a reference to another entry, asset or content type.
type Link struct {
	Sys Sys `json:"sys"`
}

// Sys is the system metadata block of entries, assets and links.
type Sys struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	LinkType    string `json:"linkType,omitempty"`
	ContentType *Link  `json:"contentType,omitempty"`
}

// Entry is a single item of an origin payload.
type Entry struct {
	Sys    Sys                        `json:"sys"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// ContentTypeID returns the content type the entry belongs to, if known.
func (e Entry) ContentTypeID() string {
	if e.Sys.ContentType == nil {
		return ""
	}
	return e.Sys.ContentType.Sys.ID
}

// Includes is the side-table of linked entries and assets.
type Includes struct {
	Entry []Entry `json:"Entry,omitempty"`
	Asset []Entry `json:"Asset,omitempty"`
}

// Payload is the origin's response to an entries query.
type Payload struct {
	Total    int      `json:"total"`
	Skip     int      `json:"skip"`
	Limit    int      `json:"limit"`
	Items    []Entry  `json:"items"`
	Includes Includes `json:"includes"`
}

// Single returns a payload holding only items[i] and the shared includes.
func (p *Payload) Single(i int) *Payload {
	return &Payload{
		Total:    1,
		Limit:    1,
		Items:    []Entry{p.Items[i]},
		Includes: p.Includes,
	}
}
