package grant

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/jrsteele09/go-oauth2-server/oauth2"
)

// RFC 7636 section 4.1 unreserved characters.
var codeVerifierPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]{43,128}$`)

// validatePKCE checks the challenge sent to the authorization endpoint.
func validatePKCE(codeChallenge string, method oauth2.CodeMethodType) error {
	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return oauth2.ErrInvalidRequest(oauth2.ParamCodeChallenge,
			fmt.Errorf("code_challenge length must be between 43 and 128 characters"))
	}
	if !codeVerifierPattern.MatchString(codeChallenge) {
		return oauth2.ErrInvalidRequest(oauth2.ParamCodeChallenge,
			fmt.Errorf("code_challenge contains characters outside the unreserved set"))
	}
	if method != oauth2.CodeMethodTypeS256 && method != oauth2.CodeMethodTypePlain {
		return oauth2.ErrInvalidRequest(oauth2.ParamCodeChallengeMethod,
			fmt.Errorf("code_challenge_method must be 'S256' or 'plain'"))
	}
	return nil
}

// validateCodeVerifier checks the verifier format at the token endpoint.
func validateCodeVerifier(verifier string) error {
	if !codeVerifierPattern.MatchString(verifier) {
		return oauth2.ErrInvalidRequest(oauth2.ParamCodeVerifier,
			fmt.Errorf("code_verifier must be 43 to 128 unreserved characters"))
	}
	return nil
}

func checkCodeChallenge(storedChallenge, verifier string, method oauth2.CodeMethodType) bool {
	if storedChallenge == "" && verifier == "" {
		return true
	}
	var computed string
	switch method {
	case oauth2.CodeMethodTypeS256:
		hash := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(hash[:])
	case oauth2.CodeMethodTypePlain:
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}
