// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrNilMeasures         = errors.New("measures cannot be nil")
	ErrAddressInvalid      = errors.New("origin address is invalid")
	ErrSpaceEmpty          = errors.New("space ID is required")
	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errServerFailure      = errors.New("origin responded with a server error")
)

const (
	DefaultPublishedAddress = "https://cdn.contentful.com"
	DefaultPreviewAddress   = "https://preview.contentful.com"
	DefaultEnvironment      = "master"

	// ContentType is sent on every request to select the delivery API.
	ContentType = "application/vnd.contentful.delivery.v1+json"

	entriesPathFmt = "%s/spaces/%s/environments/%s/entries"
	errWrappedFmt  = "%w: %s"

	defaultFailureThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
)

// BreakerConfig tunes the circuit breaker guarding each origin endpoint. The
// breaker never retries; it only short-circuits calls while the origin keeps
// failing with 5xx responses or transport errors.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval after which closed-state counts are cleared. Zero keeps them
	// until the state changes.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that trip the
	// breaker.
	FailureThreshold uint32

	// MinRequests must be seen in the current interval before tripping.
	MinRequests uint32
}

// ClientConfig contains config data for the client that will be used to make
// requests to the content origin.
type ClientConfig struct {
	// PublishedAddress is the base URL of the published content API.
	// (Optional) Defaults to https://cdn.contentful.com.
	PublishedAddress string

	// PreviewAddress is the base URL of the preview content API.
	// (Optional) Defaults to https://preview.contentful.com.
	PreviewAddress string

	// Environment is the origin side environment, not to be confused with
	// published/preview. (Optional) Defaults to master.
	Environment string

	// Timeout bounds a single request when HTTPClient is not given.
	Timeout time.Duration

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger

	Breaker BreakerConfig
}

// Response is what the origin answered. Body is returned as received, which
// may still be gzip encoded.
type Response struct {
	Code   int
	Body   []byte
	Header http.Header
}

// Client sends entry queries to the content origin.
type Client struct {
	client      *http.Client
	addresses   map[model.Environment]string
	breakers    map[model.Environment]*gobreaker.CircuitBreaker
	environment string
	logger      *zap.Logger
	measures    *Measures
	getLogger   func(context.Context) *zap.Logger
}

// NewClient creates a new Client that can be used to query the origin.
func NewClient(config ClientConfig, measures *Measures, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	err := validateConfig(&config)
	if err != nil {
		return nil, err
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	c := &Client{
		client: config.HTTPClient,
		addresses: map[model.Environment]string{
			model.Published: strings.TrimRight(config.PublishedAddress, "/"),
			model.Preview:   strings.TrimRight(config.PreviewAddress, "/"),
		},
		environment: config.Environment,
		logger:      config.Logger,
		measures:    measures,
		getLogger:   getLogger,
	}
	c.breakers = map[model.Environment]*gobreaker.CircuitBreaker{
		model.Published: c.newBreaker(model.Published, config.Breaker),
		model.Preview:   c.newBreaker(model.Preview, config.Breaker),
	}
	return c, nil
}

func (c *Client) newBreaker(env model.Environment, config BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        env.Endpoint(),
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= config.MinRequests && counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("origin circuit breaker changed state",
				zap.String("endpoint", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
}

// Query fetches the entries matching q. Only failures to get any answer are
// errors; the caller classifies the response code.
func (c *Client) Query(ctx context.Context, src model.Source, env model.Environment, q model.Query) (Response, error) {
	if src.SpaceID == "" {
		return Response{}, ErrSpaceEmpty
	}

	requestID := uuid.NewString()
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	l = l.With(zap.String("request_id", requestID), zap.String("space", src.SpaceID), zap.String(EndpointLabel, env.Endpoint()))

	result, err := c.breakers[env].Execute(func() (interface{}, error) {
		resp, err := c.sendRequest(ctx, src, env, q)
		if err != nil {
			return resp, err
		}
		if resp.Code >= http.StatusInternalServerError {
			return resp, errServerFailure
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.measures.Requests.WithLabelValues(CircuitOpenCode, env.Endpoint()).Add(1.0)
		l.Error("origin circuit breaker rejected the request", zap.Error(err))
		return Response{}, fmt.Errorf(errWrappedFmt, model.ErrInternalServer, err.Error())
	case errors.Is(err, errServerFailure):
		// counted against the breaker, classified by the caller
	case err != nil:
		c.measures.Requests.WithLabelValues(TransportErrorCode, env.Endpoint()).Add(1.0)
		l.Error("origin request failed", zap.Error(err))
		return Response{}, err
	}

	resp := result.(Response)
	c.measures.Requests.WithLabelValues(strconv.Itoa(resp.Code), env.Endpoint()).Add(1.0)
	if resp.Code != http.StatusOK {
		l.Error("origin responded with a non-200 response", zap.Int("code", resp.Code))
	} else {
		l.Debug("origin responded", zap.Int("code", resp.Code), zap.Int("bytes", len(resp.Body)))
	}
	return resp, nil
}

func (c *Client) entriesURL(src model.Source, env model.Environment, q model.Query) string {
	values := url.Values{}
	for k, v := range q {
		values.Set(k, v)
	}
	values.Set("include", "1")
	return fmt.Sprintf(entriesPathFmt, c.addresses[env], url.PathEscape(src.SpaceID), url.PathEscape(c.environment)) + "?" + values.Encode()
}

func (c *Client) sendRequest(ctx context.Context, src model.Source, env model.Environment, q model.Query) (Response, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.entriesURL(src, env, q), nil)
	if err != nil {
		return Response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	token := src.Token(env)
	if token == "" {
		return Response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, "no token for "+env.String())
	}
	auth, err := acquire.NewFixedAuthAcquirer("Bearer " + token)
	if err != nil {
		return Response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	err = acquire.AddAuth(r, auth)
	if err != nil {
		return Response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	r.Header.Set("Content-Type", ContentType)
	r.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.client.Do(r)
	if err != nil {
		return Response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	var oResp = Response{
		Code:   resp.StatusCode,
		Header: resp.Header,
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return oResp, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	oResp.Body = bodyBytes
	return oResp, nil
}

func validateConfig(config *ClientConfig) error {
	if config.PublishedAddress == "" {
		config.PublishedAddress = DefaultPublishedAddress
	}
	if config.PreviewAddress == "" {
		config.PreviewAddress = DefaultPreviewAddress
	}
	for _, address := range []string{config.PublishedAddress, config.PreviewAddress} {
		if _, err := url.ParseRequestURI(address); err != nil {
			return fmt.Errorf(errWrappedFmt, ErrAddressInvalid, err.Error())
		}
	}
	if config.Environment == "" {
		config.Environment = DefaultEnvironment
	}

	if config.HTTPClient == nil {
		if config.Timeout > 0 {
			config.HTTPClient = &http.Client{Timeout: config.Timeout}
		} else {
			config.HTTPClient = http.DefaultClient
		}
	}

	if config.Logger == nil {
		config.Logger = sallust.Default()
	}

	if config.Breaker.FailureThreshold == 0 {
		config.Breaker.FailureThreshold = defaultFailureThreshold
	}
	if config.Breaker.Timeout == 0 {
		config.Breaker.Timeout = defaultBreakerTimeout
	}
	return nil
}
