// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits a separated list (as found in env vars), trims each
// element and drops empties and repeats. Order is preserved; an input with
// no usable elements yields nil.
//
//	SplitList(" https://a.example, https://b.example,,https://a.example", ",")
//	// []string{"https://a.example", "https://b.example"}
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}

	parts := strings.Split(v, sep)
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
