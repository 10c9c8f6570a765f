// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/origin"
	"github.com/xmidt-org/contentcache/store/inmem"
	"go.uber.org/zap"
)

const pagePayload = `{
  "total": 1,
  "skip": 0,
  "limit": 100,
  "items": [
    {"sys": {"id": "p1", "type": "Entry", "contentType": {"sys": {"id": "page"}}}, "fields": {"title": "Hello", "slug": "hello"}}
  ]
}`

type mockOrigin struct {
	mock.Mock
}

func (m *mockOrigin) Query(_ context.Context, src model.Source, env model.Environment, q model.Query) (origin.Response, error) {
	args := m.Called(src, env, q)
	return args.Get(0).(origin.Response), args.Error(1)
}

var testSource = model.Source{Name: "default", SpaceID: "xxxx", AccessToken: "a", PreviewAccessToken: "b"}

type CacheTestSuite struct {
	suite.Suite
	store    *inmem.InMem
	origin   *mockOrigin
	measures *Measures
	cache    *Cache
	query    model.Query
}

func (s *CacheTestSuite) SetupTest() {
	s.store = inmem.NewInMem()
	s.origin = new(mockOrigin)
	s.measures = NewMeasures()
	s.cache = NewCache(s.store, s.origin, s.measures, zap.NewNop())
	s.query = model.Query{"sys.id": "p1", "content_type": "page"}
}

func (s *CacheTestSuite) TestKey() {
	s.Equal("xxxx/cdn/content_type-page/include-1/sys.id-p1", s.cache.Key(testSource, model.Published, s.query))
	s.Equal("xxxx/preview/content_type-page/include-1/sys.id-p1", s.cache.Key(testSource, model.Preview, s.query))
	s.Len(s.query, 2, "the caller's query must not be modified")
}

func (s *CacheTestSuite) TestReadThrough() {
	ctx := context.Background()
	s.origin.On("Query", testSource, model.Published, s.query).
		Return(origin.Response{Code: http.StatusOK, Body: []byte(pagePayload)}, nil).Once()

	payload, err := s.cache.Fetch(ctx, testSource, s.query, Read, model.Published)
	s.Require().NoError(err)
	s.Equal(1, payload.Total)
	s.Equal("p1", payload.Items[0].Sys.ID)

	// second read is a pure cache hit
	payload, err = s.cache.Fetch(ctx, testSource, s.query, Read, model.Published)
	s.Require().NoError(err)
	s.Equal("p1", payload.Items[0].Sys.ID)

	s.origin.AssertNumberOfCalls(s.T(), "Query", 1)
	s.Equal(1, s.store.Len())
	s.Equal(1.0, testutil.ToFloat64(s.measures.Lookups.WithLabelValues(HitOutcome)))
	s.Equal(1.0, testutil.ToFloat64(s.measures.Lookups.WithLabelValues(MissOutcome)))
}

func (s *CacheTestSuite) TestStoresCompactJSON() {
	ctx := context.Background()
	s.origin.On("Query", testSource, model.Published, s.query).
		Return(origin.Response{Code: http.StatusOK, Body: []byte(pagePayload)}, nil).Once()

	_, err := s.cache.Fetch(ctx, testSource, s.query, Read, model.Published)
	s.Require().NoError(err)

	stored, err := s.store.Get(ctx, s.cache.Key(testSource, model.Published, s.query))
	s.Require().NoError(err)
	s.NotContains(string(stored), "\n")
	s.JSONEq(pagePayload, string(stored))
}

func (s *CacheTestSuite) TestForceRefreshOverwrites() {
	ctx := context.Background()
	key := s.cache.Key(testSource, model.Preview, s.query)
	s.Require().NoError(s.store.Set(ctx, key, []byte(`{"total":1,"items":[{"sys":{"id":"old"}}]}`)))
	s.origin.On("Query", testSource, model.Preview, s.query).
		Return(origin.Response{Code: http.StatusOK, Body: []byte(pagePayload)}, nil).Once()

	payload, err := s.cache.Fetch(ctx, testSource, s.query, ForceRefresh, model.Preview)
	s.Require().NoError(err)
	s.Equal("p1", payload.Items[0].Sys.ID)

	cached, found, err := s.cache.Cached(ctx, testSource, s.query, model.Preview)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("p1", cached.Items[0].Sys.ID)
	s.Equal(1.0, testutil.ToFloat64(s.measures.Lookups.WithLabelValues(RefreshOutcome)))
}

func (s *CacheTestSuite) TestGzipBody() {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(pagePayload))
	s.Require().NoError(err)
	s.Require().NoError(zw.Close())

	s.origin.On("Query", testSource, model.Published, s.query).
		Return(origin.Response{Code: http.StatusOK, Body: buf.Bytes()}, nil).Once()

	payload, err := s.cache.Fetch(context.Background(), testSource, s.query, Read, model.Published)
	s.Require().NoError(err)
	s.Equal("p1", payload.Items[0].Sys.ID)
}

func (s *CacheTestSuite) TestCorruptCachedPayload() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, s.cache.Key(testSource, model.Published, s.query), []byte("{not json")))

	_, err := s.cache.Fetch(ctx, testSource, s.query, Read, model.Published)
	s.True(errors.Is(err, ErrCorruptPayload))
	s.origin.AssertNotCalled(s.T(), "Query", mock.Anything, mock.Anything, mock.Anything)
}

func (s *CacheTestSuite) TestOriginError() {
	transportErr := errors.New("connection refused")
	s.origin.On("Query", testSource, model.Published, s.query).Return(origin.Response{}, transportErr).Once()

	_, err := s.cache.Fetch(context.Background(), testSource, s.query, Read, model.Published)
	s.True(errors.Is(err, transportErr))
	s.Equal(0, s.store.Len())
}

func TestCache(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestFetchClassification(t *testing.T) {
	type testCase struct {
		Description string
		Response    origin.Response
		ExpectedErr error
	}

	tcs := []testCase{
		{
			Description: "Zero total",
			Response:    origin.Response{Code: http.StatusOK, Body: []byte(`{"total":0,"items":[]}`)},
			ExpectedErr: model.ErrRecordNotFound,
		},
		{
			Description: "Not found",
			Response:    origin.Response{Code: http.StatusNotFound},
			ExpectedErr: model.ErrRecordNotFound,
		},
		{
			Description: "Unauthorized",
			Response:    origin.Response{Code: http.StatusUnauthorized},
			ExpectedErr: model.ErrRecordNotFound,
		},
		{
			Description: "Server error",
			Response:    origin.Response{Code: http.StatusBadGateway},
			ExpectedErr: model.ErrInternalServer,
		},
		{
			Description: "Redirect",
			Response:    origin.Response{Code: http.StatusFound},
			ExpectedErr: model.ErrInternalServer,
		},
		{
			Description: "Garbage",
			Response:    origin.Response{Code: http.StatusOK, Body: []byte("<html>")},
			ExpectedErr: errParsePayload,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			s := inmem.NewInMem()
			o := new(mockOrigin)
			o.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(tc.Response, nil).Once()

			payload, err := NewCache(s, o, nil, nil).Fetch(context.Background(), testSource, model.Query{"content_type": "page"}, Read, model.Published)
			require.Error(err)
			assert.Nil(payload)
			assert.True(errors.Is(err, tc.ExpectedErr))
			assert.Equal(0, s.Len(), "failures must not be cached")
		})
	}
}

func TestNormalize(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]byte(`{"a":1}`), normalize([]byte(`{"a":1}`)))

	// magic bytes without a valid stream fall back to the raw body
	broken := []byte{0x1f, 0x8b, 'x'}
	assert.Equal(broken, normalize(broken))
}
