// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func readViper(t *testing.T, yaml string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

func TestProvidePaths(t *testing.T) {
	type testCase struct {
		Description     string
		YAML            string
		ExpectedMetrics MetricsPath
		ExpectedHealth  HealthPath
	}

	tcs := []testCase{
		{
			Description:     "Defaults",
			YAML:            "servers: {}",
			ExpectedMetrics: defaultMetricsPath,
			ExpectedHealth:  defaultHealthPath,
		},
		{
			Description: "Configured",
			YAML: `
servers:
  metrics:
    path: /prom
  health:
    path: /ping
`,
			ExpectedMetrics: "/prom",
			ExpectedHealth:  "/ping",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			metrics, health := providePaths(readViper(t, tc.YAML))
			assert.Equal(t, tc.ExpectedMetrics, metrics)
			assert.Equal(t, tc.ExpectedHealth, health)
		})
	}
}

func TestPrimaryMiddleware(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	registry := prometheus.NewPedanticRegistry()
	factory := touchstone.NewFactory(touchstone.Config{}, zap.NewNop(), registry)
	metrics, err := touchhttp.ServerBundle{}.NewInstrumenter(touchhttp.ServerLabel, primaryServerLabel)(factory)
	require.NoError(err)

	h := NewPrimaryMiddleware(metrics).ThenFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/entries/page/p1", nil))
	assert.Equal(panicStatusCode, rw.Code)

	families, err := registry.Gather()
	require.NoError(err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(names, touchhttp.DefaultServerCount)
}

// serverAddresses captures the listen address of each named server.
type serverAddresses map[string]chan net.Addr

func (sa serverAddresses) provide() fx.Option {
	var options []fx.Option
	for name, ch := range sa {
		ch := ch
		options = append(options, fx.Provide(
			fx.Annotated{
				Name: name + ".listeners",
				Target: func() arrangehttp.ListenerChain {
					return arrangehttp.NewListenerChain(arrangehttp.CaptureListenAddress(ch))
				},
			},
		))
	}
	return fx.Options(options...)
}

func (sa serverAddresses) await(t *testing.T, name string) string {
	addr, ok := arrangehttp.AwaitListenAddress(t.Errorf, sa[name], 5*time.Second)
	require.True(t, ok, name)
	return "http://" + addr.String()
}

func get(t *testing.T, url string) (int, string) {
	response, err := http.Get(url) //nolint:noctx
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response.StatusCode, string(body)
}

func TestServers(t *testing.T) {
	assert := assert.New(t)

	v := readViper(t, `
servers:
  metrics:
    address: 127.0.0.1:0
  health:
    address: 127.0.0.1:0
    path: /ping
`)
	addrs := serverAddresses{
		metricsServerKey: make(chan net.Addr, 1),
		healthServerKey:  make(chan net.Addr, 1),
	}

	app := fxtest.New(t,
		arrange.ForViper(v),
		fx.Supply(v),
		touchstone.Provide(),
		provideServers(),
		addrs.provide(),
		fx.Invoke(BuildMetricsRoutes, BuildHealthRoutes),
	)
	app.RequireStart()
	defer app.RequireStop()

	health := addrs.await(t, healthServerKey)
	metrics := addrs.await(t, metricsServerKey)

	code, _ := get(t, health+"/ping")
	assert.Equal(http.StatusOK, code)

	code, _ = get(t, health+defaultHealthPath)
	assert.Equal(http.StatusNotFound, code)

	code, body := get(t, metrics+defaultMetricsPath)
	assert.Equal(http.StatusOK, code)
	assert.Contains(body, touchhttp.DefaultServerCount)
	assert.Contains(body, `server="health"`)
}

func TestServersBadAddress(t *testing.T) {
	v := readViper(t, `
servers:
  health:
    address: "not an address"
`)

	app := fxtest.New(t,
		arrange.ForViper(v),
		fx.Supply(v),
		touchstone.Provide(),
		provideServers(),
		fx.Invoke(BuildHealthRoutes),
	)
	assert.Error(t, app.Start(context.Background()))
}
