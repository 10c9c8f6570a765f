// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"time"

	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/badgerdb"
	"github.com/xmidt-org/contentcache/store/cassandra"
	"github.com/xmidt-org/contentcache/store/db/metric"
	"github.com/xmidt-org/contentcache/store/dynamodb"
	"github.com/xmidt-org/contentcache/store/inmem"
	"github.com/xmidt-org/contentcache/store/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	configKey = "store"

	defaultPingInterval = 5 * time.Second
)

// Configs holds one optional section per backend. The first one present, in
// field order, is used; with none the store lives in process memory.
type Configs struct {
	Dynamo   *dynamodb.Config
	Yugabyte *cassandra.Config
	Badger   *badgerdb.Config
	SQLite   *sqlite.Config

	// PingInterval is how often a networked backend is health checked.
	PingInterval time.Duration
}

type SetupIn struct {
	fx.In
	Configs  Configs
	Measures metric.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

type pinger interface {
	Ping(context.Context) error
}

type closer interface {
	Close() error
}

func Provide() fx.Option {
	return fx.Options(
		metric.ProvideMetrics(),
		fx.Provide(
			arrange.UnmarshalKey(configKey, Configs{}),
			SetupStore,
		),
	)
}

// SetupStore builds the configured backend, ties its shutdown to the fx
// lifecycle and decorates it with query metrics.
func SetupStore(in SetupIn) (store.S, error) {
	s, err := newBackend(in)
	if err != nil {
		return nil, err
	}

	var ticker *time.Ticker
	if p, ok := s.(pinger); ok {
		interval := in.Configs.PingInterval
		if interval <= 0 {
			interval = defaultPingInterval
		}
		ticker = doEvery(interval, func(_ time.Time) {
			err := p.Ping(context.Background())
			if err != nil {
				in.Measures.QueryFailureCount.WithLabelValues(store.PingType).Add(1.0)
				in.Logger.Error("ping failed", zap.Error(err))
				return
			}
			in.Measures.QuerySuccessCount.WithLabelValues(store.PingType).Add(1.0)
		})
	}

	in.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if ticker != nil {
				ticker.Stop()
			}
			if c, ok := s.(closer); ok {
				return c.Close()
			}
			return nil
		},
	})

	return NewInstrumentingStore(in.Measures, s), nil
}

func newBackend(in SetupIn) (store.S, error) {
	switch {
	case in.Configs.Dynamo != nil:
		in.Logger.Info("using dynamodb store implementation")
		return dynamodb.NewDynamoDB(context.Background(), *in.Configs.Dynamo, in.Measures, in.Logger)
	case in.Configs.Yugabyte != nil:
		in.Logger.Info("using yugabyte store implementation")
		return cassandra.NewCassandra(*in.Configs.Yugabyte, in.Logger)
	case in.Configs.Badger != nil:
		in.Logger.Info("using badger store implementation")
		return badgerdb.NewBadger(*in.Configs.Badger, in.Logger)
	case in.Configs.SQLite != nil:
		in.Logger.Info("using sqlite store implementation")
		return sqlite.NewSQLite(*in.Configs.SQLite)
	}
	in.Logger.Info("using in memory store implementation")
	return inmem.NewInMem(), nil
}

func doEvery(d time.Duration, f func(time.Time)) *time.Ticker {
	ticker := time.NewTicker(d)
	go func() {
		for x := range ticker.C {
			f(x)
		}
	}()
	return ticker
}
