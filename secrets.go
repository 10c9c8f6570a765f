// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	ssmPrefix    = "ssm:"
	awsConfigKey = "aws"
)

var (
	errSecretEmpty  = errors.New("secret parameter is empty")
	errSecretLookup = errors.New("failed to read secret parameter")
)

// AWSConfig selects the account used to read ssm: references.
type AWSConfig struct {
	Region  string
	Profile string
}

// SecretResolver turns configured values into secrets.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// ParameterGetter is the part of the SSM client used to read secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ssmResolver returns plain values as they are and reads ssm:<name> values
// from the parameter store, decrypted. The client is only built when the
// first reference is seen.
type ssmResolver struct {
	newClient func(context.Context) (ParameterGetter, error)
	logger    *zap.Logger

	lock   sync.Mutex
	client ParameterGetter
	values map[string]string
}

// NewSecretResolver builds a SecretResolver reading from the account in
// config.
func NewSecretResolver(config AWSConfig, logger *zap.Logger) SecretResolver {
	return &ssmResolver{
		newClient: func(ctx context.Context) (ParameterGetter, error) {
			return newSSMClient(ctx, config)
		},
		logger: logger,
		values: make(map[string]string),
	}
}

func newSSMClient(ctx context.Context, config AWSConfig) (ParameterGetter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(config.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ssm.NewFromConfig(awsCfg), nil
}

func (r *ssmResolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, ssmPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, ssmPrefix)

	r.lock.Lock()
	defer r.lock.Unlock()
	if v, ok := r.values[name]; ok {
		return v, nil
	}
	if r.client == nil {
		client, err := r.newClient(ctx)
		if err != nil {
			return "", err
		}
		r.client = client
	}

	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w %s: %s", errSecretLookup, name, apiErr.ErrorCode())
		}
		return "", fmt.Errorf("%w %s: %v", errSecretLookup, name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: %s", errSecretEmpty, name)
	}

	r.logger.Info("resolved secret parameter", zap.String("parameter", name))
	r.values[name] = aws.ToString(out.Parameter.Value)
	return r.values[name], nil
}
