// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/contentcache/content"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
)

// Server keys double as the names of the *mux.Router components.
const (
	primaryServerKey = "servers.primary"
	metricsServerKey = "servers.metrics"
	healthServerKey  = "servers.health"

	defaultMetricsPath = "/metrics"
	defaultHealthPath  = "/health"

	// panicStatusCode marks responses of recovered handler panics.
	panicStatusCode = 555
)

// MetricsPath is the route of the prometheus handler on the metrics server.
type MetricsPath string

// HealthPath is the route answering health checks.
type HealthPath string

func providePaths(v *viper.Viper) (MetricsPath, HealthPath) {
	metrics, health := v.GetString(metricsServerKey+".path"), v.GetString(healthServerKey+".path")
	if metrics == "" {
		metrics = defaultMetricsPath
	}
	if health == "" {
		health = defaultHealthPath
	}
	return MetricsPath(metrics), HealthPath(health)
}

type PrimaryMiddlewareIn struct {
	fx.In
	Metrics touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
}

type HealthMiddlewareIn struct {
	fx.In
	Metrics touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
}

// NewPrimaryMiddleware wraps the whole primary router, so unmatched routes
// are counted too.
func NewPrimaryMiddleware(metrics touchhttp.ServerInstrumenter) alice.Chain {
	return alice.New(
		recovery.Middleware(recovery.WithStatusCode(panicStatusCode)),
		metrics.Then,
	)
}

// provideServers binds the primary, metrics and health servers to the
// application. Each is unmarshaled from its servers.* key as an
// arrangehttp.ServerConfig. The routers are only built, and the servers only
// started, when something invokes them.
func provideServers() fx.Option {
	return fx.Options(
		provideServerMetrics(),
		fx.Provide(
			providePaths,
			fx.Annotated{
				Name: "servers.primary.middleware",
				Target: func(in PrimaryMiddlewareIn) alice.Chain {
					return NewPrimaryMiddleware(in.Metrics)
				},
			},
			fx.Annotated{
				Name: "servers.health.middleware",
				Target: func(in HealthMiddlewareIn) alice.Chain {
					return alice.New(in.Metrics.Then)
				},
			},
		),
		arrangehttp.Server{
			Name: primaryServerKey,
			Key:  primaryServerKey,
			Inject: arrange.Inject{
				struct {
					fx.In
					Middleware alice.Chain               `name:"servers.primary.middleware"`
					Listeners  arrangehttp.ListenerChain `name:"servers.primary.listeners" optional:"true"`
				}{},
			},
		}.Provide(),
		arrangehttp.Server{
			Name: metricsServerKey,
			Key:  metricsServerKey,
			Inject: arrange.Inject{
				struct {
					fx.In
					Listeners arrangehttp.ListenerChain `name:"servers.metrics.listeners" optional:"true"`
				}{},
			},
		}.Provide(),
		arrangehttp.Server{
			Name: healthServerKey,
			Key:  healthServerKey,
			Inject: arrange.Inject{
				struct {
					fx.In
					Middleware alice.Chain               `name:"servers.health.middleware"`
					Listeners  arrangehttp.ListenerChain `name:"servers.health.listeners" optional:"true"`
				}{},
			},
		}.Provide(),
	)
}

type PrimaryRoutesIn struct {
	fx.In
	Router    *mux.Router `name:"servers.primary"`
	Handlers  content.Handlers
	AuthChain alice.Chain `name:"auth_chain"`
	Tracing   candlelight.Tracing
}

// BuildPrimaryRoutes mounts the content API with tracing.
func BuildPrimaryRoutes(in PrimaryRoutesIn) {
	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}
	in.Router.Use(otelmux.Middleware("server_primary", options...),
		candlelight.EchoFirstTraceNodeInfo(in.Tracing, false))
	content.Routes(in.Router, in.Handlers, in.AuthChain)
}

type MetricsRoutesIn struct {
	fx.In
	Router  *mux.Router `name:"servers.metrics"`
	Handler touchhttp.Handler
	Path    MetricsPath
}

func BuildMetricsRoutes(in MetricsRoutesIn) {
	in.Router.Handle(string(in.Path), in.Handler).Methods(http.MethodGet)
}

type HealthRoutesIn struct {
	fx.In
	Router *mux.Router `name:"servers.health"`
	Path   HealthPath
}

// BuildHealthRoutes answers 200 for as long as the process is up.
func BuildHealthRoutes(in HealthRoutesIn) {
	in.Router.Handle(string(in.Path), httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
}
