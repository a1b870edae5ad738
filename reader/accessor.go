package reader

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalize turns a raw CSV header string into a field-key: lowercased,
// with runs of non-alphanumeric characters collapsed to a single
// underscore and leading/trailing underscores trimmed.
func normalize(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// buildAccessors normalizes field_names in order and checks for
// collisions: two distinct headers that normalize to the same key are a
// malformed header, per §4.1's fatal "malformed header" error.
func buildAccessors(fieldNames []string) ([]string, map[string]int, error) {
	accessors := make([]string, len(fieldNames))
	index := make(map[string]int, len(fieldNames))
	for i, h := range fieldNames {
		key := normalize(h)
		if key == "" {
			return nil, nil, fmt.Errorf("reader: header %d (%q) normalizes to an empty field key", i, h)
		}
		if prev, ok := index[key]; ok {
			return nil, nil, fmt.Errorf("reader: headers %q and %q both normalize to field key %q", fieldNames[prev], h, key)
		}
		accessors[i] = key
		index[key] = i
	}
	return accessors, index, nil
}
