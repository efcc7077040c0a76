package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/proddash/internal/logging"
)

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "dashboard"

type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// PasswordAuth gates requests behind HTTP Basic authentication with a single
// shared password. The username is ignored.
//
// Codes:
//   - AUTH001: no credentials were sent
//   - AUTH002: the password does not match
func PasswordAuth(password string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(password))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pass, ok := r.BasicAuth()
			if !ok {
				logging.FromContext(r.Context()).Warn("auth: missing credentials",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", ClientIP(r),
				)
				unauthorized(w, "AUTH001", "Authentication required")
				return
			}

			// Comparing digests keeps the compare length independent of input.
			got := sha256.Sum256([]byte(pass))
			if password == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logging.FromContext(r.Context()).Warn("auth: invalid password",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", ClientIP(r),
				)
				unauthorized(w, "AUTH002", "Invalid password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authError{
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: msg,
		Code:    code,
	})
}
