package authflow

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// jwtClaims is the subset of the token payload used to identify the account.
type jwtClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Sub               string `json:"sub"`
}

// userIDFromToken extracts an account identifier from a JWT access token
// without verifying the signature; the token came straight from the backend
// over TLS and is only inspected for a display identity. Preference order is
// email, then preferred_username, then sub. Returns "" when the token is not
// a decodable JWT.
func userIDFromToken(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some issuers pad the segment.
		payload, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return ""
		}
	}

	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}

	switch {
	case claims.Email != "":
		return claims.Email
	case claims.PreferredUsername != "":
		return claims.PreferredUsername
	default:
		return claims.Sub
	}
}
