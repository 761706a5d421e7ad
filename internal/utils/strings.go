// Package utils holds small helpers shared by the bridge, config and batching layers.
package utils

import "strings"

// SplitList splits a comma separated value into trimmed, non-empty items.
// It returns nil when nothing is left, so callers can fall back to a default.
// Used for CORS_ORIGINS and the ?types= event filter.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
