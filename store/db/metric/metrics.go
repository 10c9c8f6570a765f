// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Generic Metrics
const (
	QuerySuccessCounter = "store_query_success_count"
	QueryFailureCounter = "store_query_failure_count"
	DeletedKeysCounter  = "store_deleted_keys_count"
)

// DynamoDB metrics
const (
	CapacityUnitConsumedCounter = "store_capacity_unit_consumed"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QuerySuccessCounter,
				Help: "The total number of successful cache store queries",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QueryFailureCounter,
				Help: "The total number of failed cache store queries",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: DeletedKeysCounter,
				Help: "The total number of keys removed from the cache store",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CapacityUnitConsumedCounter,
				Help: "The number of capacity units consumed by the operation.",
			},
			store.TypeLabel,
		),
	)
}

type Measures struct {
	fx.In
	QuerySuccessCount *prometheus.CounterVec `name:"store_query_success_count"`
	QueryFailureCount *prometheus.CounterVec `name:"store_query_failure_count"`
	DeletedKeysCount  *prometheus.CounterVec `name:"store_deleted_keys_count"`

	// DynamoDB Metrics
	CapacityUnitConsumedCount *prometheus.CounterVec `name:"store_capacity_unit_consumed"`
}

// NewMeasures builds unregistered measures, for tests and for stores created
// outside of an fx.App.
func NewMeasures() Measures {
	return Measures{
		QuerySuccessCount: prometheus.NewCounterVec(prometheus.CounterOpts{Name: QuerySuccessCounter}, []string{store.TypeLabel}),
		QueryFailureCount: prometheus.NewCounterVec(prometheus.CounterOpts{Name: QueryFailureCounter}, []string{store.TypeLabel}),
		DeletedKeysCount:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: DeletedKeysCounter}, []string{store.TypeLabel}),

		CapacityUnitConsumedCount: prometheus.NewCounterVec(prometheus.CounterOpts{Name: CapacityUnitConsumedCounter}, []string{store.TypeLabel}),
	}
}
