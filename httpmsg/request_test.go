package httpmsg_test

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-oauth2-server/httpmsg"
	"github.com/stretchr/testify/require"
)

func TestRequest_BasicAuth(t *testing.T) {
	encode := func(s string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name     string
		header   string
		wantUser string
		wantPass string
		wantOK   bool
	}{
		{name: "valid", header: encode("client:secret"), wantUser: "client", wantPass: "secret", wantOK: true},
		{name: "secret with colon", header: encode("client:se:cret"), wantUser: "client", wantPass: "se:cret", wantOK: true},
		{name: "no colon", header: encode("client"), wantOK: false},
		{name: "not base64", header: "Basic %%%", wantOK: false},
		{name: "bearer scheme", header: "Bearer abc", wantOK: false},
		{name: "missing", header: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httpmsg.NewRequest(http.MethodPost)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			user, pass, ok := req.BasicAuth()
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantUser, user)
			require.Equal(t, tt.wantPass, pass)
		})
	}
}

func TestRequest_WithAttributeDoesNotMutateOriginal(t *testing.T) {
	req := httpmsg.NewRequest(http.MethodGet)
	withAttr := req.WithAttribute("oauth_client_id", "client-1")

	require.Nil(t, req.Attribute("oauth_client_id"))
	require.Equal(t, "client-1", withAttr.Attribute("oauth_client_id"))
}

func TestFromHTTP(t *testing.T) {
	form := url.Values{"grant_type": {"client_credentials"}, "scope": {"read"}}
	r := httptest.NewRequest(http.MethodPost, "/token?foo=bar", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	req, err := httpmsg.FromHTTP(r)
	require.NoError(t, err)

	grantType, ok := req.BodyParam("grant_type")
	require.True(t, ok)
	require.Equal(t, "client_credentials", grantType)

	_, ok = req.BodyParam("foo")
	require.False(t, ok, "query values must not leak into the body")

	foo, ok := req.QueryParam("foo")
	require.True(t, ok)
	require.Equal(t, "bar", foo)
	require.Equal(t, "abc", req.Cookies["session"])
}

func TestResponse_WriteHTTP(t *testing.T) {
	resp := httpmsg.NewResponse()
	resp.Status = http.StatusCreated
	resp.Header.Set("Content-Type", "application/json")
	_, err := resp.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, resp.WriteHTTP(rec))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}
