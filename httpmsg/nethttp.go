package httpmsg

import (
	"net/http"

	"github.com/pkg/errors"
)

// maxFormBytes bounds the size of a parsed form body.
const maxFormBytes = 1 << 20

// FromHTTP converts a net/http request into a Request. Form bodies are parsed
// for POST, PUT and PATCH; query parameters are kept separate from the body.
func FromHTTP(r *http.Request) (*Request, error) {
	req := NewRequest(r.Method)
	req.Query = r.URL.Query()
	req.Header = r.Header.Clone()

	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, errors.Wrap(err, "[httpmsg.FromHTTP] ParseForm")
		}
		req.Body = r.PostForm
	}
	return req, nil
}

// WriteHTTP copies the response onto a net/http ResponseWriter.
func (r *Response) WriteHTTP(w http.ResponseWriter) error {
	for name, values := range r.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(r.Body.Bytes()); err != nil {
		return errors.Wrap(err, "[httpmsg.Response.WriteHTTP] Write")
	}
	return nil
}
