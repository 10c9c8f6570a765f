// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/record"
)

type mockModel struct {
	mock.Mock
	contentType string
	source      model.Source
}

func (m *mockModel) ContentType() string  { return m.contentType }
func (m *mockModel) Source() model.Source { return m.source }

func (m *mockModel) Find(_ context.Context, id string, opts ...record.Option) (*model.Record, error) {
	args := m.Called(id, len(opts))
	r, _ := args.Get(0).(*model.Record)
	return r, args.Error(1)
}

func (m *mockModel) FindBy(_ context.Context, attrs map[string]interface{}, opts ...record.Option) (*model.Record, error) {
	args := m.Called(attrs, len(opts))
	r, _ := args.Get(0).(*model.Record)
	return r, args.Error(1)
}

func (m *mockModel) Update(_ context.Context, id string, opts ...record.Option) (*model.Record, error) {
	args := m.Called(id, len(opts))
	r, _ := args.Get(0).(*model.Record)
	return r, args.Error(1)
}

func (m *mockModel) Destroy(_ context.Context, id string, opts ...record.Option) (int, error) {
	args := m.Called(id, len(opts))
	return args.Int(0), args.Error(1)
}

func (m *mockModel) All(_ context.Context, opts ...record.Option) ([]*model.Record, error) {
	args := m.Called(len(opts))
	r, _ := args.Get(0).([]*model.Record)
	return r, args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (c *mockCatalog) Lookup(contentType string) (Model, error) {
	args := c.Called(contentType)
	m, _ := args.Get(0).(Model)
	return m, args.Error(1)
}

type mockRebuilder struct {
	mock.Mock
}

func (b *mockRebuilder) Bulk(_ context.Context, src model.Source, contentType, attribute string, env model.Environment) ([]string, error) {
	args := b.Called(src, contentType, attribute, env)
	k, _ := args.Get(0).([]string)
	return k, args.Error(1)
}
