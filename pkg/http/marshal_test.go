package http

import (
	"errors"
	"testing"
)

func TestMarshal_Request_Simple(t *testing.T) {
	req := &Request{
		Method:  "GET",
		Path:    "/api/users",
		Version: "HTTP/1.1",
		Headers: Headers{
			{Key: "Host", Value: "example.com"},
			{Key: "Accept", Value: "application/json"},
		},
	}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "GET /api/users HTTP/1.1\r\nHost: example.com\r\nAccept: application/json\r\n\r\n"
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_WithBody(t *testing.T) {
	req := &Request{
		Method:  "POST",
		Path:    "/api/users",
		Version: "HTTP/1.1",
		Headers: Headers{
			{Key: "Host", Value: "example.com"},
			{Key: "Content-Type", Value: "application/json"},
		},
		Body: []byte(`{"name":"John Doe"}`),
	}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "POST /api/users HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 19\r\n" +
		"\r\n" +
		`{"name":"John Doe"}`
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_WithExplicitContentLength(t *testing.T) {
	req := &Request{
		Method:  "POST",
		Path:    "/api/users",
		Version: "HTTP/1.1",
		Headers: Headers{
			{Key: "Host", Value: "example.com"},
			{Key: "Content-Length", Value: "19"},
		},
		Body: []byte(`{"name":"John Doe"}`),
	}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// Should not add a second Content-Length
	want := "POST /api/users HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 19\r\n" +
		"\r\n" +
		`{"name":"John Doe"}`
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_DefaultVersion(t *testing.T) {
	req := &Request{
		Method: "GET",
		Path:   "/",
		Headers: Headers{
			{Key: "Host", Value: "example.com"},
		},
	}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_EmptyMethod(t *testing.T) {
	req := &Request{Path: "/"}
	_, err := Marshal(req)
	if err == nil {
		t.Error("Marshal() expected error for empty method")
	}
}

func TestMarshal_Request_EmptyTarget(t *testing.T) {
	req := &Request{Method: "GET"}
	_, err := Marshal(req)
	if err == nil {
		t.Error("Marshal() expected error for empty target")
	}
}

func TestMarshal_Request_PathAndQuery(t *testing.T) {
	req := &Request{Method: "GET", Path: "/search", RawQuery: "q=go&page=2"}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "GET /search?q=go&page=2 HTTP/1.1\r\n\r\n"
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_TargetWins(t *testing.T) {
	req := &Request{Method: "OPTIONS", Target: "*", Path: "/ignored"}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "OPTIONS * HTTP/1.1\r\n\r\n"
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
}

func TestMarshal_Request_ReadBack(t *testing.T) {
	in := &Request{
		Method:  "POST",
		Path:    "/login",
		Headers: Headers{{Key: "Content-Type", Value: "application/x-www-form-urlencoded"}},
		Body:    []byte("user=ann&pass=x%26y"),
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest() error = %v", err)
	}
	if got := out.Form.Get("pass"); got != "x&y" {
		t.Errorf("Form.Get(pass) = %q, want %q", got, "x&y")
	}
	if got := out.Headers.Get("Content-Length"); got != "19" {
		t.Errorf("Content-Length = %q, want %q", got, "19")
	}
}

func TestMarshal_Response(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(StatusNotFound)
	resp.SetContentType("text/html")
	resp.WriteString("<h1>Not Found</h1>")

	data, err := Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: 18\r\n" +
		"\r\n" +
		"<h1>Not Found</h1>"
	if string(data) != want {
		t.Errorf("Marshal() =\n%q\nwant:\n%q", string(data), want)
	}
	if resp.Flushed() {
		t.Error("Marshal() flushed the response")
	}
}

func TestMarshal_Nil(t *testing.T) {
	_, err := Marshal(nil)
	if err == nil {
		t.Error("Marshal(nil) expected error")
	}
}

func TestMarshal_UnsupportedType(t *testing.T) {
	_, err := Marshal("not a request or response")
	if err == nil {
		t.Error("Marshal(string) expected error")
	}
}

func TestMarshal_Marshaler_Interface(t *testing.T) {
	m := &mockMarshaler{data: []byte("custom output")}
	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "custom output" {
		t.Errorf("Marshal() = %q, want %q", string(data), "custom output")
	}
}

type mockMarshaler struct {
	data []byte
}

func (m *mockMarshaler) MarshalHTTP() ([]byte, error) {
	return m.data, nil
}

func TestMarshal_Request_RejectsUnsafeFields(t *testing.T) {
	req := &Request{
		Method:  "GET",
		Target:  "/",
		Headers: Headers{{Key: "Host", Value: "example.com\r\nX-Injected: 1"}},
	}
	if _, err := Marshal(req); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("Marshal() error = %v, want ErrInvalidHeader", err)
	}

	req = &Request{Method: "GET", Target: "/a\r\nX-Injected: 1"}
	if _, err := Marshal(req); err == nil {
		t.Error("Marshal() with CRLF in target: expected error")
	}
}
