// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockParameterGetter struct {
	mock.Mock
}

func (m *mockParameterGetter) GetParameter(ctx context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(aws.ToString(params.Name), aws.ToBool(params.WithDecryption))
	out, _ := args.Get(0).(*ssm.GetParameterOutput)
	return out, args.Error(1)
}

func parameter(value string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(value)}}
}

func newTestResolver(client ParameterGetter, clientErr error) (*ssmResolver, *int) {
	built := 0
	return &ssmResolver{
		newClient: func(context.Context) (ParameterGetter, error) {
			built++
			return client, clientErr
		},
		logger: zap.NewNop(),
		values: make(map[string]string),
	}, &built
}

func TestSecretResolver(t *testing.T) {
	type testCase struct {
		Description   string
		Value         string
		Setup         func(m *mockParameterGetter)
		ExpectedValue string
		ExpectedErr   error
	}

	tcs := []testCase{
		{
			Description:   "Plain value",
			Value:         "literal-token",
			ExpectedValue: "literal-token",
		},
		{
			Description:   "Empty value",
			ExpectedValue: "",
		},
		{
			Description: "Parameter",
			Value:       "ssm:/contentcache/token",
			Setup: func(m *mockParameterGetter) {
				m.On("GetParameter", "/contentcache/token", true).Return(parameter("s3cr3t"), nil).Once()
			},
			ExpectedValue: "s3cr3t",
		},
		{
			Description: "Lookup failure",
			Value:       "ssm:/contentcache/missing",
			Setup: func(m *mockParameterGetter) {
				m.On("GetParameter", "/contentcache/missing", true).Return(nil, errors.New("ParameterNotFound")).Once()
			},
			ExpectedErr: errSecretLookup,
		},
		{
			Description: "Empty parameter",
			Value:       "ssm:/contentcache/empty",
			Setup: func(m *mockParameterGetter) {
				m.On("GetParameter", "/contentcache/empty", true).Return(parameter(""), nil).Once()
			},
			ExpectedErr: errSecretEmpty,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			m := new(mockParameterGetter)
			if tc.Setup != nil {
				tc.Setup(m)
			}
			r, built := newTestResolver(m, nil)

			value, err := r.Resolve(context.Background(), tc.Value)
			if tc.ExpectedErr != nil {
				assert.ErrorIs(err, tc.ExpectedErr)
			} else {
				assert.NoError(err)
				assert.Equal(tc.ExpectedValue, value)
			}
			if tc.Setup == nil {
				assert.Zero(*built, "plain values never build a client")
			}
			m.AssertExpectations(t)
		})
	}
}

func TestSecretResolverCaches(t *testing.T) {
	assert := assert.New(t)
	m := new(mockParameterGetter)
	m.On("GetParameter", "/contentcache/token", true).Return(parameter("s3cr3t"), nil).Once()
	r, built := newTestResolver(m, nil)

	for i := 0; i < 3; i++ {
		value, err := r.Resolve(context.Background(), "ssm:/contentcache/token")
		assert.NoError(err)
		assert.Equal("s3cr3t", value)
	}
	assert.Equal(1, *built)
	m.AssertExpectations(t)
}

func TestSecretResolverClientFailure(t *testing.T) {
	clientErr := errors.New("no credentials")
	r, _ := newTestResolver(nil, clientErr)
	_, err := r.Resolve(context.Background(), "ssm:/contentcache/token")
	assert.ErrorIs(t, err, clientErr)
}
