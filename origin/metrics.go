// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	RequestCounter = "origin_requests_total"
)

// Labels
const (
	CodeLabel     = "code"
	EndpointLabel = "endpoint"
)

// Label Values
const (
	TransportErrorCode = "transport_error"
	CircuitOpenCode    = "circuit_open"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: RequestCounter,
				Help: "Counter for the requests sent to the content origin, by response code and endpoint.",
			},
			CodeLabel, EndpointLabel,
		),
	)
}

type Measures struct {
	fx.In
	Requests *prometheus.CounterVec `name:"origin_requests_total"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() *Measures {
	return &Measures{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{Name: RequestCounter}, []string{CodeLabel, EndpointLabel}),
	}
}
