// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	CacheCounter = "request_cache_total"

	OutcomeLabel = "outcome"

	HitOutcome     = "hit"
	MissOutcome    = "miss"
	RefreshOutcome = "refresh"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return touchstone.CounterVec(
		prometheus.CounterOpts{
			Name: CacheCounter,
			Help: "Counter for payload lookups by outcome (hit, miss or forced refresh).",
		},
		OutcomeLabel,
	)
}

type Measures struct {
	fx.In
	Lookups *prometheus.CounterVec `name:"request_cache_total"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() *Measures {
	return &Measures{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{Name: CacheCounter}, []string{OutcomeLabel}),
	}
}
