package http

import (
	"net/url"
	"strings"

	"github.com/shapestone/shape-httpd/internal/fastparser"
)

// Param is a single decoded key/value pair of a query string or form.
type Param struct {
	Key   string
	Value string
}

// Values is an ordered multi-map of query or form parameters. Keys are
// case-sensitive and may repeat; insertion order is preserved.
type Values []Param

// ParseQuery decodes an application/x-www-form-urlencoded string.
// An invalid percent escape is an error.
func ParseQuery(s string) (Values, error) {
	pairs, err := fastparser.ParseURLEncoded(s)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	v := make(Values, len(pairs))
	for i, p := range pairs {
		v[i] = Param{Key: p.Key, Value: p.Value}
	}
	return v, nil
}

// Get returns the first value for key, or "" if absent.
func (v Values) Get(key string) string {
	for _, p := range v {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	for _, p := range v {
		if p.Key == key {
			return true
		}
	}
	return false
}

// All returns every value for key in order.
func (v Values) All(key string) []string {
	var vals []string
	for _, p := range v {
		if p.Key == key {
			vals = append(vals, p.Value)
		}
	}
	return vals
}

// Keys returns the distinct keys in order of first appearance.
func (v Values) Keys() []string {
	var keys []string
	seen := make(map[string]struct{}, len(v))
	for _, p := range v {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	return keys
}

// Add appends a value for key.
func (v *Values) Add(key, value string) {
	*v = append(*v, Param{Key: key, Value: value})
}

// Set replaces all values for key with value, keeping the position of the
// first occurrence.
func (v *Values) Set(key, value string) {
	for i, p := range *v {
		if p.Key == key {
			(*v)[i].Value = value
			j := i + 1
			for j < len(*v) {
				if (*v)[j].Key == key {
					*v = append((*v)[:j], (*v)[j+1:]...)
				} else {
					j++
				}
			}
			return
		}
	}
	*v = append(*v, Param{Key: key, Value: value})
}

// Del removes all values for key.
func (v *Values) Del(key string) {
	j := 0
	for _, p := range *v {
		if p.Key != key {
			(*v)[j] = p
			j++
		}
	}
	*v = (*v)[:j]
}

// Encode renders the values as "k1=v1&k2=v2" in order, escaping keys and
// values so that ParseQuery reproduces them exactly.
func (v Values) Encode() string {
	var b strings.Builder
	for i, p := range v {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
