// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import "strings"

var separatorReplacer = strings.NewReplacer(
	"\r\n", "/",
	"\n", "/",
	"\r", "/",
	`\`, "/",
)

// NormalizeKey maps path-like keys that name the same note to one cache key.
// Backslashes and embedded line breaks become forward slashes, runs of
// slashes collapse to one, and surrounding whitespace is dropped.
func NormalizeKey(key string) string {
	key = separatorReplacer.Replace(strings.TrimSpace(key))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}
