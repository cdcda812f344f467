package server

import "github.com/shapestone/shape-httpd/pkg/http"

// Handler responds to one request. Serve is called synchronously by the
// connection worker; it fills resp and must not keep either argument after
// returning. A panic in Serve is turned into a 500 response.
type Handler interface {
	Serve(req *http.Request, resp *http.Response)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *http.Request, resp *http.Response)

// Serve calls f(req, resp).
func (f HandlerFunc) Serve(req *http.Request, resp *http.Response) { f(req, resp) }
