package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"codebuddy-hq/relay/pkg/proxy/types"
)

// AuthMiddleware enforces the service-level password on every route except
// the ones the exempt predicate accepts (health and metrics). Clients send
// the password as a bearer credential, matching OpenAI SDK conventions.
//
// An empty configured password refuses authenticated routes instead of
// leaving them open: a relay holding live backend credentials must never
// run unauthenticated by accident.
func AuthMiddleware(password string, exempt func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt != nil && exempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			if password == "" {
				writeAuthError(w, types.NewServiceUnavailableError(
					"The service password is not configured.",
					types.CodePasswordNotConfigured,
				))
				return
			}

			supplied := bearerToken(r)
			if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(password)) != 1 {
				writeAuthError(w, types.NewErrorResponse(
					"Missing or invalid service password.",
					types.ErrorTypeAuthentication, "", types.CodeInvalidPassword,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer ..."
// header. Returns an empty string when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthError(w http.ResponseWriter, errResp *types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errResp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errResp)
}
