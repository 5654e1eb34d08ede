package httpmsg

import (
	"bytes"
	"net/http"
)

// Response collects the status, headers and body the server wants to send.
type Response struct {
	Status int
	Header http.Header
	Body   bytes.Buffer
}

// NewResponse returns a 200 response with no headers.
func NewResponse() *Response {
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{},
	}
}

// Write appends to the body so a Response can be used as an io.Writer.
func (r *Response) Write(p []byte) (int, error) {
	return r.Body.Write(p)
}

// Location returns the redirect target, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}
