// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package keys derives the cache keys under which origin responses and
// secondary index entries are stored.
package keys

import (
	"sort"
	"strings"

	"github.com/xmidt-org/contentcache/model"
)

const separator = "/"

// AttributeIndex returns the key linking an attribute value of a content
// type to the id of the record holding it:
//
//	{spaceID}/{contentType}/{value}
func AttributeIndex(spaceID, contentType, value string) string {
	return strings.Join([]string{spaceID, contentType, value}, separator)
}

// Query returns the key under which the origin's response to q is cached:
//
//	{spaceID}/{endpoint}/{param1}-{value1}/{param2}-{value2}/...
//
// Parameters are sorted by name so that equal queries always share a key.
func Query(spaceID, endpoint string, q model.Query) string {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+2)
	parts = append(parts, spaceID, endpoint)
	for _, name := range names {
		parts = append(parts, name+"-"+q[name])
	}
	return strings.Join(parts, separator)
}
