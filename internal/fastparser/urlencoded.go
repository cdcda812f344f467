package fastparser

import (
	"fmt"
	"net/url"
	"strings"
)

// Pair is one decoded key/value of an application/x-www-form-urlencoded
// string.
type Pair struct {
	Key   string
	Value string
}

// ParseURLEncoded decodes a query string or url-encoded form body into
// pairs in their original order. '+' decodes to a space. Empty segments
// ("a=1&&b=2") are skipped; a segment without '=' has an empty value.
// An invalid percent escape fails the whole string.
func ParseURLEncoded(s string) ([]Pair, error) {
	if s == "" {
		return nil, nil
	}
	pairs := make([]Pair, 0, strings.Count(s, "&")+1)
	for s != "" {
		var seg string
		seg, s, _ = strings.Cut(s, "&")
		if seg == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(seg, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("invalid url-encoded key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid url-encoded value for %q: %w", key, err)
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs, nil
}

// SplitPath splits a raw path into percent-decoded segments. Empty
// segments produced by leading, trailing or doubled slashes are dropped.
func SplitPath(path string) ([]string, error) {
	var segs []string
	for path != "" {
		var seg string
		seg, path, _ = strings.Cut(path, "/")
		if seg == "" {
			continue
		}
		dec, err := url.PathUnescape(seg)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", seg, err)
		}
		segs = append(segs, dec)
	}
	return segs, nil
}
