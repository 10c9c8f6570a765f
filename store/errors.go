// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xmidt-org/httpaux/erraux"
)

// ErrKeyNotFound is matched by every KeyNotFoundError.
var ErrKeyNotFound = errors.New("key not found")

var errStoreFailure = erraux.Error{
	Err:  errors.New("cache store operation failed"),
	Code: http.StatusServiceUnavailable,
}

// KeyNotFoundError is returned by Get when nothing is stored at Key.
type KeyNotFoundError struct {
	Key string
}

func (knf KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found", knf.Key)
}

func (knf KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}

func (knf KeyNotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// InternalError wraps a backend failure. Err keeps the driver error for
// logging while ErrHTTP is what may be shown to an HTTP client.
type InternalError struct {
	Err       error
	Operation string
	ErrHTTP   erraux.Error
}

// NewInternalError wraps err with the default sanitized HTTP error.
func NewInternalError(operation string, err error) InternalError {
	return InternalError{Err: err, Operation: operation, ErrHTTP: errStoreFailure}
}

func (ie InternalError) Error() string {
	return fmt.Sprintf("%s operation failed: %v", ie.Operation, ie.Err)
}

func (ie InternalError) Unwrap() error {
	return ie.Err
}

func (ie InternalError) StatusCode() int {
	return ie.ErrHTTP.Code
}
