package querycache

import (
	"sort"
	"strings"
)

// Key builds a cache key from a resource name and identifying parts,
// e.g. Key("comments", designID) -> "comments/9f2…".
func Key(resource string, parts ...string) string {
	if len(parts) == 0 {
		return resource
	}
	return resource + "/" + strings.Join(parts, "/")
}

// Signature builds a stable query signature from a resource name and
// filter parameters. Parameters are sorted so equal filter sets always
// produce the same key; empty values are dropped.
func Signature(resource string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return resource
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(resource)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
