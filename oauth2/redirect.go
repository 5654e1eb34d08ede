package oauth2

import (
	"net/url"
	"strings"
)

const ContentTypeJSON = "application/json; charset=UTF-8"

// BuildRedirectURI appends params to base, in the fragment when useFragment is
// set and in the query otherwise.
func BuildRedirectURI(base string, params url.Values, useFragment bool) string {
	encoded := params.Encode()
	if useFragment {
		if strings.Contains(base, "#") {
			return base + "&" + encoded
		}
		return base + "#" + encoded
	}
	if strings.Contains(base, "?") {
		return base + "&" + encoded
	}
	return base + "?" + encoded
}
