// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package auth guards the routes that write to the cache with HS256 bearer
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"emperror.dev/emperror"
	"github.com/golang-jwt/jwt"
	"github.com/xmidt-org/bascule"
	"github.com/xmidt-org/bascule/basculehttp"
)

const jwtPrincipalKey = "sub"

var (
	errEmptyToken       = errors.New("empty value")
	errUnexpectedMethod = errors.New("unexpected signing method")
)

// hmacTokenFactory validates bearer tokens signed with a shared secret.
type hmacTokenFactory struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// ParseAndValidate expects the given value to be an HS256 JWT with a subject.
// If everything goes well, a Token of type "jwt" is returned.
func (f hmacTokenFactory) ParseAndValidate(_ context.Context, _ *http.Request, _ bascule.Authorization, value string) (bascule.Token, error) {
	if len(value) == 0 {
		return nil, errEmptyToken
	}

	claims := make(jwt.MapClaims)
	parser := jwt.Parser{SkipClaimsValidation: true}
	jwsToken, err := parser.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: %v", errUnexpectedMethod, token.Header["alg"])
		}
		return f.secret, nil
	})
	if err != nil {
		return nil, emperror.Wrap(err, "failed to parse JWS")
	}
	if !jwsToken.Valid {
		return nil, basculehttp.ErrInvalidToken
	}
	if err := f.validateTimes(claims); err != nil {
		return nil, err
	}

	principal, ok := claims[jwtPrincipalKey].(string)
	if !ok || principal == "" {
		return nil, emperror.WrapWith(basculehttp.ErrInvalidPrincipal, "principal value not found", "principal key", jwtPrincipalKey)
	}

	return bascule.NewToken("jwt", principal, bascule.NewAttributes(map[string]interface{}(claims))), nil
}

// validateTimes checks exp and nbf allowing for the configured leeway.
func (f hmacTokenFactory) validateTimes(claims jwt.MapClaims) error {
	now := f.now().Unix()
	leeway := int64(f.leeway.Seconds())
	if !claims.VerifyExpiresAt(now-leeway, false) {
		return emperror.Wrap(basculehttp.ErrInvalidToken, "token is expired")
	}
	if !claims.VerifyNotBefore(now+leeway, false) {
		return emperror.Wrap(basculehttp.ErrInvalidToken, "token is not valid yet")
	}
	return nil
}
