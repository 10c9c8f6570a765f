// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/xmidt-org/contentcache/store"
	"github.com/xmidt-org/httpaux/erraux"
)

// client captures the methods of interest from the dynamoDB API. This
// should help mock API calls as well.
type client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// capacityRecorder receives the consumed capacity of every call along with
// the store operation type it was spent on.
type capacityRecorder func(consumed *types.ConsumedCapacity, queryType string)

// executor talks to a single table keyed by the cache key.
type executor struct {
	// c is the dynamodb client
	c client

	// tableName is the name of the dynamodb table
	tableName string

	recordCapacity capacityRecorder
}

type storableItem struct {
	Key   string `dynamodbav:"key"`
	Value []byte `dynamodbav:"value"`
}

// Dynamo DB partition key attribute
const keyAttributeKey = "key"

const ddbValidationError = "ValidationException"

var (
	errDefaultDynamoDBFailure = erraux.Error{
		Err:  errors.New("dynamodb operation failed"),
		Code: http.StatusInternalServerError,
	}
	errBadRequest = erraux.Error{
		Err:  errors.New("bad request to dynamodb"),
		Code: http.StatusBadRequest,
	}
)

func handleClientError(operation string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == ddbValidationError {
		return store.InternalError{Err: err, Operation: operation, ErrHTTP: errBadRequest}
	}
	return store.InternalError{Err: err, Operation: operation, ErrHTTP: errDefaultDynamoDBFailure}
}

func (d *executor) record(consumed *types.ConsumedCapacity, queryType string) {
	if consumed != nil && d.recordCapacity != nil {
		d.recordCapacity(consumed, queryType)
	}
}

func (d *executor) keyAttribute(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttributeKey: &types.AttributeValueMemberS{Value: key},
	}
}

func (d *executor) put(ctx context.Context, key string, value []byte, onlyIfAbsent bool) (bool, error) {
	av, err := attributevalue.MarshalMap(storableItem{Key: key, Value: value})
	if err != nil {
		return false, store.NewInternalError(store.InsertType, err)
	}
	input := &dynamodb.PutItemInput{
		Item:                   av,
		TableName:              aws.String(d.tableName),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}
	if onlyIfAbsent {
		input.ConditionExpression = aws.String("attribute_not_exists(#k)")
		input.ExpressionAttributeNames = map[string]string{"#k": keyAttributeKey}
	}

	result, err := d.c.PutItem(ctx, input)
	if result != nil {
		d.record(result.ConsumedCapacity, store.InsertType)
	}
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if onlyIfAbsent && errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, handleClientError(store.InsertType, err)
	}
	return true, nil
}

func (d *executor) Set(ctx context.Context, key string, value []byte) error {
	_, err := d.put(ctx, key, value, false)
	return err
}

func (d *executor) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return d.put(ctx, key, value, true)
}

func (d *executor) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := d.c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:              aws.String(d.tableName),
		Key:                    d.keyAttribute(key),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, handleClientError(store.ReadType, err)
	}
	d.record(result.ConsumedCapacity, store.ReadType)
	if len(result.Item) == 0 {
		return nil, store.KeyNotFoundError{Key: key}
	}

	var item storableItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, store.NewInternalError(store.ReadType, err)
	}
	return item.Value, nil
}

func (d *executor) Exists(ctx context.Context, key string) (bool, error) {
	result, err := d.c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      d.keyAttribute(key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#k"),
		ExpressionAttributeNames: map[string]string{"#k": keyAttributeKey},
		ReturnConsumedCapacity:   types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return false, handleClientError(store.ExistsType, err)
	}
	d.record(result.ConsumedCapacity, store.ExistsType)
	return len(result.Item) > 0, nil
}

// Delete removes keys one at a time. BatchWriteItem would be cheaper but does
// not report which items existed.
func (d *executor) Delete(ctx context.Context, keys ...string) (int, error) {
	var deleted int
	for _, key := range keys {
		result, err := d.c.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:              aws.String(d.tableName),
			Key:                    d.keyAttribute(key),
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
			ReturnValues:           types.ReturnValueAllOld,
		})
		if err != nil {
			return deleted, handleClientError(store.DeleteType, err)
		}
		d.record(result.ConsumedCapacity, store.DeleteType)
		if len(result.Attributes) > 0 {
			deleted++
		}
	}
	return deleted, nil
}
