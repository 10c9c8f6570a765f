// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
)

// Values of the server label
const (
	primaryServerLabel = "primary"
	healthServerLabel  = "health"
)

// provideServerMetrics supplies the prometheus handler and one
// touchhttp.ServerInstrumenter per instrumented server. Both instrumenters
// share server_request_count and its companions, told apart by the server
// label.
func provideServerMetrics() fx.Option {
	return fx.Options(
		touchhttp.Provide(),
		fx.Provide(
			fx.Annotated{
				Name: "servers.primary.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, primaryServerLabel,
				),
			},
			fx.Annotated{
				Name: "servers.health.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, healthServerLabel,
				),
			},
		),
	)
}
