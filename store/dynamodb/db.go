// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/db/metric"
	"go.uber.org/zap"
)

const (
	DynamoDB = "dynamo"

	defaultTable      = "gifnoc"
	defaultMaxRetries = 3
)

type Config struct {
	Table      string
	Endpoint   string
	Region     string
	MaxRetries int
	AccessKey  string
	SecretKey  string
}

// DB is a store.S backed by a DynamoDB table whose partition key is the
// string attribute "key".
type DB struct {
	*executor
	config Config
	logger *zap.Logger
}

var _ store.S = (*DB)(nil)

// NewDynamoDB loads the AWS configuration and builds a client for the
// configured table. Static credentials are used only when both keys are set;
// otherwise the default credential chain applies.
func NewDynamoDB(ctx context.Context, config Config, measures metric.Measures, logger *zap.Logger) (*DB, error) {
	validateConfig(&config)

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(config.MaxRetries),
	}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	c := dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	return newDB(c, config, measures, logger), nil
}

func newDB(c client, config Config, measures metric.Measures, logger *zap.Logger) *DB {
	return &DB{
		executor: &executor{
			c:         c,
			tableName: config.Table,
			recordCapacity: func(consumed *types.ConsumedCapacity, queryType string) {
				logger.Debug("Updating consumed capacity", zap.String(store.TypeLabel, queryType), zap.Float64p("consumed", consumed.CapacityUnits))
				if consumed.CapacityUnits != nil && measures.CapacityUnitConsumedCount != nil {
					measures.CapacityUnitConsumedCount.WithLabelValues(queryType).Add(*consumed.CapacityUnits)
				}
			},
		},
		config: config,
		logger: logger,
	}
}

func validateConfig(config *Config) {
	if config.Table == "" {
		config.Table = defaultTable
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
}
