package http

import (
	"mime"

	"github.com/shapestone/shape-httpd/internal/fastparser"
)

// Part is one named section of a multipart/form-data body.
type Part struct {
	Name        string  // form field name from Content-Disposition
	FileName    string  // filename parameter, "" for plain fields
	ContentType string  // part Content-Type, "" if absent
	Headers     Headers // part headers in order
	Content     []byte  // part content, aliases the request body
}

// IsFile reports whether the part was sent as a file upload.
func (p *Part) IsFile() bool { return p.FileName != "" }

// parseMultipart splits body using the boundary parameter of contentType.
// It returns the parts and the number of non-content bytes.
func parseMultipart(body []byte, params map[string]string) ([]Part, int, error) {
	boundary := params["boundary"]
	if !fastparser.ValidBoundary(boundary) {
		return nil, 0, &ParseError{Kind: KindMalformed, Section: SectionBody, Message: "missing or invalid multipart boundary"}
	}
	mp, err := fastparser.SplitMultipart(body, boundary)
	if err != nil {
		return nil, 0, &ParseError{Kind: KindMalformed, Section: SectionBody, Message: "bad multipart body", Err: err}
	}

	parts := make([]Part, len(mp.Parts))
	for i, raw := range mp.Parts {
		p := &parts[i]
		p.Headers = convertHeaders(raw.Headers)
		p.Content = raw.Content
		p.ContentType = p.Headers.Get("Content-Type")
		if disp := p.Headers.Get("Content-Disposition"); disp != "" {
			if _, dp, err := mime.ParseMediaType(disp); err == nil {
				p.Name = dp["name"]
				p.FileName = dp["filename"]
			}
		}
	}
	return parts, mp.Overhead, nil
}

func convertHeaders(internal []fastparser.Header) Headers {
	if len(internal) == 0 {
		return nil
	}
	headers := make(Headers, len(internal))
	for i, h := range internal {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return headers
}
