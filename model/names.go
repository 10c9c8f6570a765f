// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName folds case and drops underscores so that relatedPosts,
// related_posts and RelatedPosts compare equal.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// ContentModelName returns the origin's content type id for a type name,
// BlogPost becomes blogPost.
func ContentModelName(typeName string) string {
	r, size := utf8.DecodeRuneInString(typeName)
	if r == utf8.RuneError {
		return typeName
	}
	return string(unicode.ToLower(r)) + typeName[size:]
}

// SnakeName returns the snake_case form of a type name, BlogPost becomes
// blog_post.
func SnakeName(typeName string) string {
	var b strings.Builder
	for i, r := range typeName {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
