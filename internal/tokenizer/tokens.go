// Package tokenizer provides HTTP request-line and Cookie header tokenization
// using Shape's tokenizer framework.
package tokenizer

// Token type constants.
const (
	// Shared
	TokenText = "Text" // run of non-separator characters
	TokenSP   = "SP"   // space separator
	TokenCRLF = "CRLF" // line ending \r\n or \n

	// Cookie header
	TokenSemicolon = "Semicolon" // ; between cookie pairs
	TokenEquals    = "Equals"    // = between name and value
	TokenOWS       = "OWS"       // run of SP / HTAB
)
