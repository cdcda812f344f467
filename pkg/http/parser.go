package http

import (
	"io"

	"github.com/shapestone/shape-core/pkg/ast"
)

// Parse parses a request in HTTP wire format into an AST.
//
// The returned ast.ObjectNode has the shape:
//
//	{ "type": "request", "method": "GET", "target": "/api?x=1",
//	  "path": "/api", "segments": ["api"], "version": "HTTP/1.1",
//	  "query": [{"key": "x", "value": "1"}],
//	  "headers": [{"key": "Host", "value": "example.com"}, ...],
//	  "cookies": [...], "form": [...], "parts": [...],
//	  "body": "..." }
//
// Empty collections and a nil body are omitted.
func Parse(input string) (ast.SchemaNode, error) {
	req, err := UnmarshalRequest([]byte(input))
	if err != nil {
		return nil, err
	}
	return RequestToNode(req), nil
}

// ParseReader reads all data from r and parses it as a request into an AST.
func ParseReader(r io.Reader) (ast.SchemaNode, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}
