// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import "errors"

// The error taxonomy shared by every layer. Callers match with errors.Is;
// producers wrap with additional context.
var (
	// ErrArgument reports caller misuse such as a malformed id or an
	// undeclared searchable field.
	ErrArgument = errors.New("argument error")

	// ErrRecordNotFound reports that the origin has no such record or that a
	// secondary index lookup missed.
	ErrRecordNotFound = errors.New("record not found")

	// ErrClassNotFound reports a content type without a registered handler.
	ErrClassNotFound = errors.New("content type not registered")

	// ErrInternalServer reports an origin failure (5xx).
	ErrInternalServer = errors.New("origin internal server error")
)
