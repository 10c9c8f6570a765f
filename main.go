// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/contentcache/auth"
	"github.com/xmidt-org/contentcache/content"
	"github.com/xmidt-org/contentcache/glossary"
	"github.com/xmidt-org/contentcache/origin"
	"github.com/xmidt-org/contentcache/request"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/db"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	applicationName = "contentcache"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := fx.New(
		arrange.LoggerFunc(logger.Sugar().Infof),
		arrange.ForViper(v),
		fx.Supply(logger, v),
		touchstone.Provide(),
		provideServers(),
		origin.ProvideMetrics(),
		request.ProvideMetrics(),
		glossary.ProvideMetrics(),
		db.Provide(),
		auth.Provide(),
		content.Provide(),
		fx.Provide(
			arrange.UnmarshalKey("prometheus", touchstone.Config{}),
			arrange.UnmarshalKey(contentConfigKey, ContentConfig{}),
			arrange.UnmarshalKey(awsConfigKey, AWSConfig{}),
			arrange.UnmarshalKey("origin", origin.ClientConfig{}),
			arrange.UnmarshalKey(glossaryConfigKey, glossary.RefresherConfig{}),
			NewSecretResolver,
			newOriginClient,
			newRequestCache,
			newGlossaryIndex,
			NewRegistry,
			candlelight.New,
			func(v *viper.Viper) (candlelight.Config, error) {
				var config candlelight.Config
				err := v.UnmarshalKey("tracing", &config)
				if err != nil {
					return candlelight.Config{}, err
				}
				config.ApplicationName = applicationName
				return config, nil
			},
		),
		fx.Invoke(
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
			BuildRefresher,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func newOriginClient(config origin.ClientConfig, measures origin.Measures, logger *zap.Logger) (*origin.Client, error) {
	config.Logger = logger
	return origin.NewClient(config, &measures, nil)
}

func newRequestCache(s store.S, c *origin.Client, measures request.Measures, logger *zap.Logger) *request.Cache {
	return request.NewCache(s, c, &measures, logger)
}

func newGlossaryIndex(s store.S, c *request.Cache, logger *zap.Logger) *glossary.Index {
	return glossary.New(s, c, logger)
}
