// Package httpmsg is the framework-neutral request/response pair the authorization
// server reads from and writes to. Adapters for net/http live alongside it.
package httpmsg

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// Request is an inbound HTTP-like message with its body already parsed.
type Request struct {
	Method  string
	Query   url.Values
	Body    url.Values
	Header  http.Header
	Cookies map[string]string

	attributes map[string]any
}

// NewRequest returns an empty request for method, with all maps initialised.
func NewRequest(method string) *Request {
	return &Request{
		Method:  method,
		Query:   url.Values{},
		Body:    url.Values{},
		Header:  http.Header{},
		Cookies: map[string]string{},
	}
}

// QueryParam returns the named query parameter and whether it was present.
func (r *Request) QueryParam(name string) (string, bool) {
	return lookup(r.Query, name)
}

// BodyParam returns the named parsed-body parameter and whether it was present.
func (r *Request) BodyParam(name string) (string, bool) {
	return lookup(r.Body, name)
}

// HeaderValue returns the first value of the named header.
func (r *Request) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// HasHeader reports whether the request carries the named header.
func (r *Request) HasHeader(name string) bool {
	if r.Header == nil {
		return false
	}
	_, ok := r.Header[http.CanonicalHeaderKey(name)]
	return ok
}

// BasicAuth parses the Authorization header as HTTP Basic credentials.
// A missing, malformed or colon-less header reports ok == false.
func (r *Request) BasicAuth() (username, password string, ok bool) {
	header := r.HeaderValue("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return username, password, true
}

// Attribute returns a request-scoped attribute set by WithAttribute.
func (r *Request) Attribute(name string) any {
	return r.attributes[name]
}

// WithAttribute returns a shallow copy of the request carrying the attribute.
func (r *Request) WithAttribute(name string, value any) *Request {
	clone := *r
	clone.attributes = make(map[string]any, len(r.attributes)+1)
	for k, v := range r.attributes {
		clone.attributes[k] = v
	}
	clone.attributes[name] = value
	return &clone
}

func lookup(values url.Values, name string) (string, bool) {
	if values == nil {
		return "", false
	}
	v, ok := values[name]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}
