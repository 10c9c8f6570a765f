// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	"errors"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// XmidtErrorHeaderKey carries the error text of a failed request.
const XmidtErrorHeaderKey = "X-Midt-Error"

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

// BadRequestErr is a malformed request. It matches model.ErrArgument.
type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

func (bre BadRequestErr) Is(target error) bool {
	return target == model.ErrArgument
}

// statusCode maps the error taxonomy onto HTTP. Errors outside of it may
// carry their own code.
func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrRecordNotFound), errors.Is(err, model.ErrClassNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInternalServer):
		return http.StatusBadGateway
	}

	var sc kithttp.StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		if l := sallust.Get(ctx); l != nil {
			l.Error("request failed", zap.Int("code", code), zap.Error(err))
		}
	}

	w.Header().Set(XmidtErrorHeaderKey, err.Error())
	var headerer kithttp.Headerer
	if errors.As(err, &headerer) {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	w.WriteHeader(code)
}
