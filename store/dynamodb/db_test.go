// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/contentcache/store/db/metric"
	"go.uber.org/zap"
)

const (
	testTableName = "table01"
	testKey       = "xxxx/page/hello"
)

var testValue = []byte(`{"total":1}`)

func newTestDB(c client) (*DB, metric.Measures) {
	measures := metric.NewMeasures()
	return newDB(c, Config{Table: testTableName}, measures, zap.NewNop()), measures
}

func storedItem(value []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttributeKey: &types.AttributeValueMemberS{Value: testKey},
		"value":         &types.AttributeValueMemberB{Value: value},
	}
}

func TestValidateConfig(t *testing.T) {
	assert := assert.New(t)
	var config Config
	validateConfig(&config)
	assert.Equal(defaultTable, config.Table)
	assert.Equal(defaultMaxRetries, config.MaxRetries)

	config = Config{Table: "cache", MaxRetries: 7}
	validateConfig(&config)
	assert.Equal("cache", config.Table)
	assert.Equal(7, config.MaxRetries)
}

func TestSet(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	db, measures := newTestDB(m)

	m.On("PutItem", mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		return aws.ToString(input.TableName) == testTableName && input.ConditionExpression == nil
	})).Return(&dynamodb.PutItemOutput{
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(1)},
	}, nil).Once()

	assert.NoError(db.Set(context.Background(), testKey, testValue))
	assert.Equal(1.0, testutil.ToFloat64(measures.CapacityUnitConsumedCount.WithLabelValues(store.InsertType)))
	m.AssertExpectations(t)
}

func TestSetNX(t *testing.T) {
	type testCase struct {
		Description string
		ClientErr   error
		ExpectedOK  bool
		ExpectedErr bool
	}

	tcs := []testCase{
		{
			Description: "Written",
			ExpectedOK:  true,
		},
		{
			Description: "Already present",
			ClientErr:   &types.ConditionalCheckFailedException{Message: aws.String("exists")},
		},
		{
			Description: "Client failure",
			ClientErr:   errors.New("throttled"),
			ExpectedErr: true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			m := new(mockClient)
			db, _ := newTestDB(m)
			m.On("PutItem", mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
				return aws.ToString(input.ConditionExpression) == "attribute_not_exists(#k)"
			})).Return(&dynamodb.PutItemOutput{}, tc.ClientErr).Once()

			ok, err := db.SetNX(context.Background(), testKey, testValue)
			assert.Equal(tc.ExpectedOK, ok)
			if tc.ExpectedErr {
				var internal store.InternalError
				assert.True(errors.As(err, &internal))
				assert.Equal(http.StatusInternalServerError, internal.StatusCode())
			} else {
				assert.NoError(err)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestGet(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	m := new(mockClient)
	db, _ := newTestDB(m)

	m.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(testValue)}, nil).Once()
	value, err := db.Get(context.Background(), testKey)
	require.NoError(err)
	assert.Equal(testValue, value)

	m.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()
	_, err = db.Get(context.Background(), testKey)
	assert.True(errors.Is(err, store.ErrKeyNotFound))
	m.AssertExpectations(t)
}

func TestExists(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	db, _ := newTestDB(m)

	m.On("GetItem", mock.MatchedBy(func(input *dynamodb.GetItemInput) bool {
		return aws.ToString(input.ProjectionExpression) == "#k"
	})).Return(&dynamodb.GetItemOutput{Item: storedItem(nil)}, nil).Once()
	ok, err := db.Exists(context.Background(), testKey)
	assert.NoError(err)
	assert.True(ok)

	m.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()
	ok, err = db.Exists(context.Background(), testKey)
	assert.NoError(err)
	assert.False(ok)
}

func TestDelete(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	db, _ := newTestDB(m)

	m.On("DeleteItem", mock.MatchedBy(func(input *dynamodb.DeleteItemInput) bool {
		return input.ReturnValues == types.ReturnValueAllOld
	})).Return(&dynamodb.DeleteItemOutput{Attributes: storedItem(testValue)}, nil).Once()
	m.On("DeleteItem", mock.Anything).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	deleted, err := db.Delete(context.Background(), testKey, "xxxx/page/missing")
	assert.NoError(err)
	assert.Equal(1, deleted)
	m.AssertExpectations(t)
}

func TestHandleClientError(t *testing.T) {
	type testCase struct {
		Description  string
		Err          error
		ExpectedCode int
	}

	tcs := []testCase{
		{
			Description:  "Validation",
			Err:          &smithy.GenericAPIError{Code: ddbValidationError, Message: "bad key"},
			ExpectedCode: http.StatusBadRequest,
		},
		{
			Description:  "Other API error",
			Err:          &smithy.GenericAPIError{Code: "InternalServerError"},
			ExpectedCode: http.StatusInternalServerError,
		},
		{
			Description:  "Plain error",
			Err:          errors.New("connection reset"),
			ExpectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			err := handleClientError(store.ReadType, tc.Err)
			var internal store.InternalError
			assert.True(errors.As(err, &internal))
			assert.Equal(tc.ExpectedCode, internal.StatusCode())
			assert.True(errors.Is(err, tc.Err))
		})
	}
}
