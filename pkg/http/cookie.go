package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shapestone/shape-httpd/internal/fastparser"
	"github.com/shapestone/shape-httpd/internal/tokenizer"
)

// TimeFormat is the date layout used in Expires attributes and Date headers.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Cookie is an HTTP cookie. Request cookies carry only Name and Value;
// the attributes are rendered into Set-Cookie headers of responses.
type Cookie struct {
	Name     string
	Value    string
	Expires  time.Time // zero means no Expires attribute
	MaxAge   int       // 0 means no Max-Age; negative renders Max-Age=0
	Domain   string
	Path     string
	Secure   bool
	HttpOnly bool
	SameSite string // "Strict", "Lax", "None" or ""
}

// Cookies is an ordered list of cookies.
type Cookies []Cookie

// Get returns the first cookie with the given name.
func (c Cookies) Get(name string) (Cookie, bool) {
	for _, ck := range c {
		if ck.Name == name {
			return ck, true
		}
	}
	return Cookie{}, false
}

// Value returns the value of the first cookie with the given name, or "".
func (c Cookies) Value(name string) string {
	ck, _ := c.Get(name)
	return ck.Value
}

// ParseCookies parses a Cookie request header value such as "a=1; b=2".
// Pairs are split on ';' and trimmed; pairs without '=' or with an invalid
// name are skipped. Surrounding double quotes are removed from values.
func ParseCookies(header string) Cookies {
	tok := tokenizer.NewCookieTokenizer()
	tok.Initialize(header)
	tokens, _ := tok.Tokenize()

	var cookies Cookies
	var name, value strings.Builder
	seenEq := false
	flush := func() {
		n := strings.TrimSpace(name.String())
		if seenEq && fastparser.IsToken(n) {
			cookies = append(cookies, Cookie{Name: n, Value: unquoteCookieValue(strings.TrimSpace(value.String()))})
		}
		name.Reset()
		value.Reset()
		seenEq = false
	}

	for i := range tokens {
		tk := &tokens[i]
		switch tk.Kind() {
		case tokenizer.TokenSemicolon:
			flush()
		case tokenizer.TokenEquals:
			if seenEq {
				value.WriteString(tk.ValueString())
			} else {
				seenEq = true
			}
		default:
			if seenEq {
				value.WriteString(tk.ValueString())
			} else {
				name.WriteString(tk.ValueString())
			}
		}
	}
	flush()
	return cookies
}

func unquoteCookieValue(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// Validate reports whether the cookie can be rendered into a Set-Cookie
// header.
func (c *Cookie) Validate() error {
	if !fastparser.IsToken(c.Name) {
		return fmt.Errorf("http: invalid cookie name %q", c.Name)
	}
	for i := 0; i < len(c.Value); i++ {
		if b := c.Value[i]; b < 0x21 || b == '"' || b == ',' || b == ';' || b == '\\' || b == 0x7f {
			return fmt.Errorf("http: invalid byte %q in value of cookie %q", b, c.Name)
		}
	}
	if strings.ContainsAny(c.Domain+c.Path+c.SameSite, ";\r\n\x00") {
		return fmt.Errorf("http: invalid attribute in cookie %q", c.Name)
	}
	return nil
}

// String renders the cookie as a Set-Cookie header value. Attributes are
// rendered only when set.
func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(TimeFormat))
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	return b.String()
}
