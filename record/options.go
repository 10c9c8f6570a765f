// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package record

import "github.com/xmidt-org/contentcache/model"

// Option tunes a single Model call.
type Option func(*options)

type options struct {
	env    model.Environment
	depth  int
	only   []string
	except []string
}

// WithEnvironment reads from env instead of the model's default.
func WithEnvironment(env model.Environment) Option {
	return func(o *options) {
		o.env = env
	}
}

// WithDepth bounds how many levels of linked entries are resolved.
// model.UnlimitedDepth resolves every level.
func WithDepth(depth int) Option {
	return func(o *options) {
		o.depth = depth
	}
}

// Only restricts link resolution to the named fields.
func Only(fields ...string) Option {
	return func(o *options) {
		o.only = append(o.only, fields...)
	}
}

// Except skips link resolution for the named fields.
func Except(fields ...string) Option {
	return func(o *options) {
		o.except = append(o.except, fields...)
	}
}
