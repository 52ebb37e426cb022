package status

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   // whether authentication succeeded
	Method string // "none" or "token"
	Reason string // failure reason, empty on success
}

// Authenticate checks the request's bearer token against token. An empty
// token disables authentication.
func Authenticate(token string, r *http.Request) AuthResult {
	if token == "" {
		return AuthResult{OK: true, Method: "none"}
	}

	provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || provided == "" {
		return AuthResult{OK: false, Method: "token", Reason: "token_missing"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
		return AuthResult{OK: false, Method: "token", Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: "token"}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := Authenticate(s.config.Token, r)
		if !res.OK {
			w.Header().Set("WWW-Authenticate", `Bearer realm="voicelink"`)
			http.Error(w, res.Reason, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
