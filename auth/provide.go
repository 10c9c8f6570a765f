// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/bascule/basculehttp"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Names
const (
	ValidationFailureCounter = "auth_validation_failure_count"
)

// Labels
const (
	ReasonLabel = "reason"
)

// Config is the auth section of the configuration.
type Config struct {
	JWT JWTConfig
}

// JWTConfig configures bearer validation. An empty Secret disables auth.
type JWTConfig struct {
	Secret string
	Leeway time.Duration
}

type Measures struct {
	fx.In
	ValidationFailures *prometheus.CounterVec `name:"auth_validation_failure_count"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() *Measures {
	return &Measures{
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{Name: ValidationFailureCounter}, []string{ReasonLabel}),
	}
}

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: ValidationFailureCounter,
				Help: "Counter for rejected requests, by reason.",
			},
			ReasonLabel,
		),
	)
}

type chainIn struct {
	fx.In
	Config   Config
	Measures Measures
	Logger   *zap.Logger
}

type chainOut struct {
	fx.Out
	Chain alice.Chain `name:"auth_chain"`
}

// Provide builds the auth_chain from the auth configuration key.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Provide(
			arrange.UnmarshalKey("auth", Config{}),
			func(in chainIn) chainOut {
				return chainOut{Chain: NewChain(in.Config, &in.Measures, in.Logger)}
			},
		),
	)
}

// NewChain returns the middleware guarding mutating routes. Without a secret
// the chain is empty.
func NewChain(config Config, measures *Measures, logger *zap.Logger) alice.Chain {
	if logger == nil {
		logger = sallust.Default()
	}
	if measures == nil {
		measures = NewMeasures()
	}
	if config.JWT.Secret == "" {
		logger.Warn("no jwt secret configured, mutating routes are unauthenticated")
		return alice.New()
	}

	f := hmacTokenFactory{
		secret: []byte(config.JWT.Secret),
		leeway: config.JWT.Leeway,
		now:    time.Now,
	}
	onError := func(reason basculehttp.ErrorResponseReason, err error) {
		measures.ValidationFailures.WithLabelValues(reason.String()).Add(1.0)
		logger.Info("rejected request", zap.Stringer("reason", reason), zap.Error(err))
	}

	return alice.New(basculehttp.NewConstructor(
		basculehttp.WithTokenFactory(basculehttp.BearerAuthorization, f),
		basculehttp.WithCErrorResponseFunc(onError),
	))
}
