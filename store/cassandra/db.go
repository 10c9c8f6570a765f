// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"
	"time"

	"emperror.dev/emperror"
	"github.com/gocql/gocql"
	"github.com/xmidt-org/contentcache/store"
	"go.uber.org/zap"
)

const (
	Yugabyte = "yugabyte"

	defaultOpTimeout       = 10 * time.Second
	defaultKeyspace        = "contentcache"
	defaultBackoffFactor   = 1
	defaultConnsPerHost    = 2
	initialConnectInterval = time.Second
)

var errNoHosts = errors.New("at least one cassandra host is required")

// Config is the yugabyte section of the store configuration.
type Config struct {
	Hosts []string

	// Database is the keyspace holding the cache table.
	Database string

	// OpTimeout bounds every query. Defaults to 10s.
	OpTimeout time.Duration

	// TLS is enabled only when SSLRootCert, SSLCert and SSLKey are all set.
	SSLRootCert            string
	SSLKey                 string
	SSLCert                string
	EnableHostVerification bool

	// Password authentication is enabled when both are set.
	Username string
	Password string

	// NumRetries is how many more times connecting is attempted after the
	// first failure.
	NumRetries int

	// WaitTimeMult grows the wait between connection attempts, starting at
	// one second.
	WaitTimeMult int

	MaxConnsPerHost int
}

type CassandraClient struct {
	client dbStore
	config Config
	logger *zap.Logger
}

var _ store.S = (*CassandraClient)(nil)

// NewCassandra connects to the cluster, retrying with a growing wait when
// NumRetries is set.
func NewCassandra(config Config, logger *zap.Logger) (*CassandraClient, error) {
	if len(config.Hosts) == 0 {
		return nil, errNoHosts
	}
	applyDefaults(&config)

	cluster := newClusterConfig(config)
	session, err := connect(cluster, logger)
	wait := initialConnectInterval
	for attempt := 1; err != nil && attempt <= config.NumRetries; attempt++ {
		logger.Warn("connecting to database failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		time.Sleep(wait)
		session, err = connect(cluster, logger)
		wait *= time.Duration(config.WaitTimeMult)
	}
	if err != nil {
		return nil, emperror.WrapWith(err, "Connecting to database failed", "hosts", config.Hosts)
	}

	return newClient(session, config, logger), nil
}

// newClusterConfig uses quorum reads and writes within the local data center,
// which SetNX's lightweight transactions require.
func newClusterConfig(config Config) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Database
	cluster.Consistency = gocql.LocalQuorum
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = config.OpTimeout
	cluster.NumConns = config.MaxConnsPerHost
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 1}

	if config.SSLRootCert != "" && config.SSLCert != "" && config.SSLKey != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 config.SSLRootCert,
			CertPath:               config.SSLCert,
			KeyPath:                config.SSLKey,
			EnableHostVerification: config.EnableHostVerification,
		}
	}
	if config.Username != "" && config.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}
	return cluster
}

func newClient(client dbStore, config Config, logger *zap.Logger) *CassandraClient {
	return &CassandraClient{
		client: client,
		config: config,
		logger: logger,
	}
}

func (s *CassandraClient) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, noDataResponse) {
			return nil, store.KeyNotFoundError{Key: key}
		}
		return nil, store.NewInternalError(store.ReadType, err)
	}
	return value, nil
}

func (s *CassandraClient) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value); err != nil {
		return store.NewInternalError(store.InsertType, err)
	}
	return nil
}

func (s *CassandraClient) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	applied, err := s.client.SetNX(ctx, key, value)
	if err != nil {
		return false, store.NewInternalError(store.InsertType, err)
	}
	return applied, nil
}

func (s *CassandraClient) Exists(ctx context.Context, key string) (bool, error) {
	found, err := s.client.Exists(ctx, key)
	if err != nil {
		return false, store.NewInternalError(store.ExistsType, err)
	}
	return found, nil
}

func (s *CassandraClient) Delete(ctx context.Context, keys ...string) (int, error) {
	var deleted int
	for _, key := range keys {
		applied, err := s.client.Remove(ctx, key)
		if err != nil {
			return deleted, store.NewInternalError(store.DeleteType, err)
		}
		if applied {
			deleted++
		}
	}
	return deleted, nil
}

func (s *CassandraClient) Close() error {
	s.client.Close()
	return nil
}

// Ping is for pinging the database to verify that the connection is still good.
func (s *CassandraClient) Ping(context.Context) error {
	err := s.client.Ping()
	if err != nil {
		return emperror.WrapWith(err, "Pinging connection failed")
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.OpTimeout <= 0 {
		config.OpTimeout = defaultOpTimeout
	}
	if config.Database == "" {
		config.Database = defaultKeyspace
	}
	if config.NumRetries < 0 {
		config.NumRetries = 0
	}
	if config.WaitTimeMult < 1 {
		config.WaitTimeMult = defaultBackoffFactor
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = defaultConnsPerHost
	}
}
