// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	ScalarKind Kind = iota
	EntryKind
	ListKind
	AssetKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case EntryKind:
		return "entry"
	case ListKind:
		return "list"
	case AssetKind:
		return "asset"
	}
	return "unknown"
}

// Value is a hydrated field value.
type Value struct {
	Kind Kind

	// Scalar holds decoded JSON for ScalarKind: strings, json.Number, bools,
	// objects and sequences of those.
	Scalar interface{}

	Entry *Record
	List  []Value
	Asset *Asset
}

func ScalarValue(v interface{}) Value { return Value{Kind: ScalarKind, Scalar: v} }
func EntryValue(r *Record) Value      { return Value{Kind: EntryKind, Entry: r} }
func ListValue(vs []Value) Value      { return Value{Kind: ListKind, List: vs} }
func AssetValue(a *Asset) Value       { return Value{Kind: AssetKind, Asset: a} }

// IsSequence reports whether the value holds more than one element, either a
// list of links or a sequence of scalars.
func (v Value) IsSequence() bool {
	if v.Kind == ListKind {
		return true
	}
	_, ok := v.Scalar.([]interface{})
	return v.Kind == ScalarKind && ok
}

// IsReference reports whether the value points at another entry or asset.
func (v Value) IsReference() bool {
	return v.Kind != ScalarKind
}

// Entries returns the linked records held by an entry or list value.
func (v Value) Entries() []*Record {
	switch v.Kind {
	case EntryKind:
		return []*Record{v.Entry}
	case ListKind:
		records := make([]*Record, 0, len(v.List))
		for _, e := range v.List {
			if e.Kind == EntryKind {
				records = append(records, e.Entry)
			}
		}
		return records
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ScalarKind:
		return json.Marshal(v.Scalar)
	case EntryKind:
		return json.Marshal(v.Entry)
	case ListKind:
		return json.Marshal(v.List)
	case AssetKind:
		return json.Marshal(v.Asset)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// Record is a hydrated entry.
type Record struct {
	ID          string           `json:"id"`
	ContentType string           `json:"contentType"`
	Fields      map[string]Value `json:"fields"`
}

// Get looks a field up by exact name, then case- and underscore-insensitively.
// The boolean is false when the field is absent.
func (r *Record) Get(name string) (Value, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	want := NormalizeName(name)
	for k, v := range r.Fields {
		if NormalizeName(k) == want {
			return v, true
		}
	}
	return Value{}, false
}

// ImageDetails holds the dimensions of an image asset.
type ImageDetails struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AssetDetails holds the binary details of an asset's file.
type AssetDetails struct {
	Size  int64         `json:"size"`
	Image *ImageDetails `json:"image,omitempty"`
}

// Asset is a hydrated binary attachment.
type Asset struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Details     AssetDetails `json:"details"`
	FileName    string       `json:"fileName,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
}

type assetFile struct {
	URL         string       `json:"url"`
	Details     AssetDetails `json:"details"`
	FileName    string       `json:"fileName"`
	ContentType string       `json:"contentType"`
}

// NewAsset builds an Asset from an entry of the includes side-table.
func NewAsset(e Entry) (*Asset, error) {
	a := &Asset{ID: e.Sys.ID}
	var file assetFile
	targets := map[string]interface{}{
		"title":       &a.Title,
		"description": &a.Description,
		"file":        &file,
	}
	for name, target := range targets {
		raw, ok := e.Fields[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("asset %s field %s: %w", e.Sys.ID, name, err)
		}
	}
	a.URL = file.URL
	a.Details = file.Details
	a.FileName = file.FileName
	a.ContentType = file.ContentType
	return a, nil
}
