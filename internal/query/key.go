package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query: an endpoint name followed by its
// serialized parameters. Keys compare by their canonical string form.
type Key struct {
	parts []string
}

// NewKey builds a key from a name and parameters. Strings are kept as is,
// fmt.Stringers use String, everything else is JSON encoded.
func NewKey(name string, params ...any) Key {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, name)
	for _, p := range params {
		parts = append(parts, encodeParam(p))
	}
	return Key{parts: parts}
}

func encodeParam(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(b)
}

func (k Key) Name() string {
	if len(k.parts) == 0 {
		return ""
	}
	return k.parts[0]
}

// String is the canonical form used for map lookups and the wire.
func (k Key) String() string {
	b, _ := json.Marshal(k.parts)
	return string(b)
}

// Label is a human readable form for logs.
func (k Key) Label() string {
	return strings.Join(k.parts, "/")
}

// Matches reports whether prefix is a leading subsequence of k, so that
// NewKey("logs") matches every logs key regardless of filters.
func (k Key) Matches(prefix Key) bool {
	if len(prefix.parts) == 0 || len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if k.parts[i] != p {
			return false
		}
	}
	return true
}

