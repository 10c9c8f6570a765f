// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/contentcache/model"
	"go.uber.org/zap"
)

var testSource = model.Source{
	Name:               "default",
	SpaceID:            "xxxx",
	AccessToken:        "published-token",
	PreviewAccessToken: "preview-token",
}

func newTestClient(t *testing.T, address string, breaker BreakerConfig) (*Client, *Measures) {
	measures := NewMeasures()
	c, err := NewClient(ClientConfig{
		PublishedAddress: address,
		PreviewAddress:   address,
		Logger:           zap.NewNop(),
		Breaker:          breaker,
	}, measures, func(context.Context) *zap.Logger { return nil })
	require.NoError(t, err)
	return c, measures
}

func TestValidateConfig(t *testing.T) {
	type testCase struct {
		Description    string
		Input          ClientConfig
		ExpectedErr    error
		ExpectedConfig ClientConfig
	}

	logger := zap.NewNop()
	myAmazingClient := &http.Client{Timeout: time.Hour}

	tcs := []testCase{
		{
			Description: "All default values",
			Input:       ClientConfig{Logger: logger},
			ExpectedConfig: ClientConfig{
				PublishedAddress: DefaultPublishedAddress,
				PreviewAddress:   DefaultPreviewAddress,
				Environment:      DefaultEnvironment,
				HTTPClient:       http.DefaultClient,
				Logger:           logger,
				Breaker: BreakerConfig{
					FailureThreshold: defaultFailureThreshold,
					Timeout:          defaultBreakerTimeout,
				},
			},
		},
		{
			Description: "All defined",
			Input: ClientConfig{
				PublishedAddress: "http://cdn.example.io",
				PreviewAddress:   "http://preview.example.io",
				Environment:      "staging",
				HTTPClient:       myAmazingClient,
				Logger:           logger,
				Breaker:          BreakerConfig{FailureThreshold: 2, Timeout: time.Minute},
			},
			ExpectedConfig: ClientConfig{
				PublishedAddress: "http://cdn.example.io",
				PreviewAddress:   "http://preview.example.io",
				Environment:      "staging",
				HTTPClient:       myAmazingClient,
				Logger:           logger,
				Breaker:          BreakerConfig{FailureThreshold: 2, Timeout: time.Minute},
			},
		},
		{
			Description: "Bad address",
			Input:       ClientConfig{PublishedAddress: "not a url", Logger: logger},
			ExpectedErr: ErrAddressInvalid,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			config := tc.Input
			err := validateConfig(&config)
			if tc.ExpectedErr != nil {
				assert.True(errors.Is(err, tc.ExpectedErr))
				return
			}
			assert.NoError(err)
			assert.Equal(tc.ExpectedConfig, config)
		})
	}
}

func TestNewClientNilMeasures(t *testing.T) {
	_, err := NewClient(ClientConfig{}, nil, nil)
	assert.Equal(t, ErrNilMeasures, err)
}

func TestQuery(t *testing.T) {
	type testCase struct {
		Description   string
		Env           model.Environment
		ExpectedToken string
		ExpectedPath  string
	}

	tcs := []testCase{
		{
			Description:   "Published",
			Env:           model.Published,
			ExpectedToken: "Bearer published-token",
			ExpectedPath:  "/spaces/xxxx/environments/master/entries",
		},
		{
			Description:   "Preview",
			Env:           model.Preview,
			ExpectedToken: "Bearer preview-token",
			ExpectedPath:  "/spaces/xxxx/environments/master/entries",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				assert.Equal(http.MethodGet, r.Method)
				assert.Equal(tc.ExpectedPath, r.URL.Path)
				assert.Equal(tc.ExpectedToken, r.Header.Get("Authorization"))
				assert.Equal(ContentType, r.Header.Get("Content-Type"))
				assert.Equal("gzip", r.Header.Get("Accept-Encoding"))
				assert.Equal("1", r.URL.Query().Get("include"))
				assert.Equal("page", r.URL.Query().Get("content_type"))
				assert.Equal("XXXX", r.URL.Query().Get("sys.id"))
				rw.Header().Set("X-Test", "yes")
				rw.Write([]byte(`{"total":1}`))
			}))
			defer server.Close()

			c, measures := newTestClient(t, server.URL, BreakerConfig{})
			resp, err := c.Query(context.Background(), testSource, tc.Env, model.Query{"content_type": "page", "sys.id": "XXXX"})
			require.NoError(err)
			assert.Equal(http.StatusOK, resp.Code)
			assert.Equal(`{"total":1}`, string(resp.Body))
			assert.Equal("yes", resp.Header.Get("X-Test"))
			assert.Equal(1.0, testutil.ToFloat64(measures.Requests.WithLabelValues("200", tc.Env.Endpoint())))
		})
	}
}

func TestQueryNonSuccessIsNotAnError(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, BreakerConfig{})
	resp, err := c.Query(context.Background(), testSource, model.Published, model.Query{})
	assert.NoError(err)
	assert.Equal(http.StatusNotFound, resp.Code)
}

func TestQueryErrors(t *testing.T) {
	assert := assert.New(t)
	c, measures := newTestClient(t, "http://127.0.0.1:1", BreakerConfig{})

	_, err := c.Query(context.Background(), model.Source{}, model.Published, model.Query{})
	assert.Equal(ErrSpaceEmpty, err)

	_, err = c.Query(context.Background(), model.Source{SpaceID: "xxxx"}, model.Preview, model.Query{})
	assert.True(errors.Is(err, ErrAuthAcquirerFailure))

	_, err = c.Query(context.Background(), testSource, model.Published, model.Query{})
	assert.True(errors.Is(err, errDoRequestFailure))
	assert.Equal(1.0, testutil.ToFloat64(measures.Requests.WithLabelValues(TransportErrorCode, "cdn")))
}

func TestQueryBreakerOpens(t *testing.T) {
	assert := assert.New(t)
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls++
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, measures := newTestClient(t, server.URL, BreakerConfig{FailureThreshold: 2, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := c.Query(ctx, testSource, model.Published, model.Query{})
		assert.NoError(err)
		assert.Equal(http.StatusServiceUnavailable, resp.Code)
	}

	_, err := c.Query(ctx, testSource, model.Published, model.Query{})
	assert.True(errors.Is(err, model.ErrInternalServer))
	assert.Equal(2, calls)
	assert.Equal(1.0, testutil.ToFloat64(measures.Requests.WithLabelValues(CircuitOpenCode, "cdn")))

	// the preview endpoint has its own breaker
	resp, err := c.Query(ctx, testSource, model.Preview, model.Query{})
	assert.NoError(err)
	assert.Equal(http.StatusServiceUnavailable, resp.Code)
}
