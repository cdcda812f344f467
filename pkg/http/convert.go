package http

import (
	"fmt"
	"strconv"

	"github.com/shapestone/shape-core/pkg/ast"
)

var zeroPos = ast.Position{}

// RequestToNode converts a Request to an AST ObjectNode. See Parse for the
// shape of the result.
func RequestToNode(req *Request) ast.SchemaNode {
	props := map[string]ast.SchemaNode{
		"type":    ast.NewLiteralNode("request", zeroPos),
		"method":  ast.NewLiteralNode(req.Method, zeroPos),
		"target":  ast.NewLiteralNode(req.Target, zeroPos),
		"path":    ast.NewLiteralNode(req.Path, zeroPos),
		"version": ast.NewLiteralNode(req.Version, zeroPos),
		"headers": headersToNode(req.Headers),
	}
	if len(req.Segments) > 0 {
		elems := make([]ast.SchemaNode, len(req.Segments))
		for i, s := range req.Segments {
			elems[i] = ast.NewLiteralNode(s, zeroPos)
		}
		props["segments"] = ast.NewArrayDataNode(elems, zeroPos)
	}
	if len(req.Query) > 0 {
		props["query"] = valuesToNode(req.Query)
	}
	if len(req.Cookies) > 0 {
		elems := make([]ast.SchemaNode, len(req.Cookies))
		for i, c := range req.Cookies {
			elems[i] = pairNode(c.Name, c.Value)
		}
		props["cookies"] = ast.NewArrayDataNode(elems, zeroPos)
	}
	if len(req.Form) > 0 {
		props["form"] = valuesToNode(req.Form)
	}
	if len(req.Parts) > 0 {
		elems := make([]ast.SchemaNode, len(req.Parts))
		for i := range req.Parts {
			p := &req.Parts[i]
			elems[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
				"name":        ast.NewLiteralNode(p.Name, zeroPos),
				"filename":    ast.NewLiteralNode(p.FileName, zeroPos),
				"contentType": ast.NewLiteralNode(p.ContentType, zeroPos),
				"size":        ast.NewLiteralNode(int64(len(p.Content)), zeroPos),
			}, zeroPos)
		}
		props["parts"] = ast.NewArrayDataNode(elems, zeroPos)
	}
	if req.Body != nil {
		props["body"] = ast.NewLiteralNode(string(req.Body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

// ResponseToNode converts a Response to an AST ObjectNode.
func ResponseToNode(resp *Response) ast.SchemaNode {
	props := map[string]ast.SchemaNode{
		"type":       ast.NewLiteralNode("response", zeroPos),
		"version":    ast.NewLiteralNode(resp.Version(), zeroPos),
		"statusCode": ast.NewLiteralNode(int64(resp.StatusCode()), zeroPos),
		"reason":     ast.NewLiteralNode(resp.Reason(), zeroPos),
		"headers":    headersToNode(*resp.Header()),
	}
	if body := resp.Body(); len(body) > 0 {
		props["body"] = ast.NewLiteralNode(string(body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

// NodeToRequest converts an AST ObjectNode back to a Request. Query and
// path segments are derived again from the target; cookies, form and
// parts are not restored.
func NodeToRequest(node ast.SchemaNode) (*Request, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, fmt.Errorf("expected ObjectNode for request, got %T", node)
	}
	props := obj.Properties()
	req := &Request{
		Method:  literalString(props["method"]),
		Target:  literalString(props["target"]),
		Version: literalString(props["version"]),
	}
	if req.Target == "" {
		req.Target = literalString(props["path"])
	}
	if err := splitTarget(req); err != nil {
		return nil, err
	}
	if h, ok := props["headers"]; ok {
		headers, err := nodeToHeaders(h)
		if err != nil {
			return nil, err
		}
		req.Headers = headers
	}
	if b, ok := props["body"]; ok {
		req.Body = []byte(literalString(b))
	}
	return req, nil
}

// NodeToResponse converts an AST ObjectNode to a Response.
func NodeToResponse(node ast.SchemaNode) (*Response, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, fmt.Errorf("expected ObjectNode for response, got %T", node)
	}
	props := obj.Properties()
	resp := NewResponse()
	if v := literalString(props["version"]); v != "" {
		resp.SetVersion(v)
	}
	resp.SetStatusReason(nodeToStatusCode(props["statusCode"]), literalString(props["reason"]))
	if h, ok := props["headers"]; ok {
		headers, err := nodeToHeaders(h)
		if err != nil {
			return nil, err
		}
		*resp.Header() = headers
	}
	if b, ok := props["body"]; ok {
		resp.WriteString(literalString(b))
	}
	return resp, nil
}

// NodeToInterface converts an AST node to native Go types.
func NodeToInterface(node ast.SchemaNode) interface{} {
	switch n := node.(type) {
	case *ast.LiteralNode:
		return n.Value()
	case *ast.ArrayDataNode:
		elements := n.Elements()
		arr := make([]interface{}, len(elements))
		for i, elem := range elements {
			arr[i] = NodeToInterface(elem)
		}
		return arr
	case *ast.ObjectNode:
		props := n.Properties()
		m := make(map[string]interface{}, len(props))
		for k, v := range props {
			m[k] = NodeToInterface(v)
		}
		return m
	default:
		return nil
	}
}

func pairNode(key, value string) ast.SchemaNode {
	return ast.NewObjectNode(map[string]ast.SchemaNode{
		"key":   ast.NewLiteralNode(key, zeroPos),
		"value": ast.NewLiteralNode(value, zeroPos),
	}, zeroPos)
}

func headersToNode(headers Headers) ast.SchemaNode {
	elements := make([]ast.SchemaNode, len(headers))
	for i, h := range headers {
		elements[i] = pairNode(h.Key, h.Value)
	}
	return ast.NewArrayDataNode(elements, zeroPos)
}

func valuesToNode(values Values) ast.SchemaNode {
	elements := make([]ast.SchemaNode, len(values))
	for i, p := range values {
		elements[i] = pairNode(p.Key, p.Value)
	}
	return ast.NewArrayDataNode(elements, zeroPos)
}

// nodeToHeaders converts an AST headers array to Headers.
func nodeToHeaders(node ast.SchemaNode) (Headers, error) {
	arr, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return nil, fmt.Errorf("expected ArrayDataNode for headers, got %T", node)
	}
	elements := arr.Elements()
	headers := make(Headers, 0, len(elements))
	for _, elem := range elements {
		obj, ok := elem.(*ast.ObjectNode)
		if !ok {
			continue
		}
		props := obj.Properties()
		headers = append(headers, Header{Key: literalString(props["key"]), Value: literalString(props["value"])})
	}
	return headers, nil
}

func literalString(node ast.SchemaNode) string {
	lit, ok := node.(*ast.LiteralNode)
	if !ok {
		return ""
	}
	s, _ := lit.Value().(string)
	return s
}

// nodeToStatusCode extracts the status code from a literal node.
func nodeToStatusCode(node ast.SchemaNode) int {
	lit, ok := node.(*ast.LiteralNode)
	if !ok {
		return 0
	}
	switch code := lit.Value().(type) {
	case int64:
		return int(code)
	case float64:
		return int(code)
	case string:
		n, _ := strconv.Atoi(code)
		return n
	}
	return 0
}
