package tokenizer

import (
	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// NewRequestLineTokenizer creates a tokenizer for an HTTP request line:
//
//	method SP request-target SP HTTP-version [CRLF]
//
// Whitespace is significant, so the default whitespace skipper is not used.
// Matchers in priority order:
// 1. CRLF (line ending)
// 2. SP (single space)
// 3. Text (method, target or version, until SP or line ending)
func NewRequestLineTokenizer() tokenizer.Tokenizer {
	return tokenizer.NewTokenizerWithoutWhitespace(
		CRLFMatcher(),
		SPMatcher(),
		TextMatcher(' ', '\r', '\n'),
	)
}

// NewCookieTokenizer creates a tokenizer for a Cookie request header value:
//
//	cookie-pair *( ";" OWS cookie-pair )
//
// '=' is a separate token so the parser can split on the first one and keep
// later ones as part of the value.
func NewCookieTokenizer() tokenizer.Tokenizer {
	return tokenizer.NewTokenizerWithoutWhitespace(
		tokenizer.StringMatcherFunc(TokenSemicolon, ";"),
		tokenizer.StringMatcherFunc(TokenEquals, "="),
		OWSMatcher(),
		TextMatcher(';', '=', ' ', '\t', '\r', '\n'),
	)
}

// CRLFMatcher matches \r\n or bare \n.
func CRLFMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		r, ok := stream.PeekChar()
		if !ok {
			return nil
		}

		if r == '\r' {
			value := []rune{'\r'}
			stream.NextChar()
			r2, ok := stream.PeekChar()
			if ok && r2 == '\n' {
				stream.NextChar()
				value = append(value, '\n')
			}
			return tokenizer.NewToken(TokenCRLF, value)
		}
		if r == '\n' {
			stream.NextChar()
			return tokenizer.NewToken(TokenCRLF, []rune{'\n'})
		}
		return nil
	}
}

// SPMatcher matches a single space character.
func SPMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		r, ok := stream.PeekChar()
		if !ok || r != ' ' {
			return nil
		}
		stream.NextChar()
		return tokenizer.NewToken(TokenSP, []rune{' '})
	}
}

// OWSMatcher matches a run of spaces and horizontal tabs.
func OWSMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || (r != ' ' && r != '\t') {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(TokenOWS, value)
	}
}

// TextMatcher matches a non-empty run of characters up to (not including)
// any of the stop characters or end of stream.
func TextMatcher(stops ...rune) tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune

		for {
			r, ok := stream.PeekChar()
			if !ok || isStop(r, stops) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}

		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(TokenText, value)
	}
}

func isStop(r rune, stops []rune) bool {
	for _, s := range stops {
		if r == s {
			return true
		}
	}
	return false
}
