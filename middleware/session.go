package middleware

import (
	"net/http"

	"github.com/MrEthical07/authgate"
)

// Session hydrates the session named by the engine's session cookie. A
// missing, unknown or expired session leaves the request without one; a
// store failure is rejected with 503.
func Session(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authgate.ErrEngineNotReady)
				return
			}

			cookie, err := r.Cookie(engine.SessionCookieName())
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := engine.HydrateSession(r.Context(), cookie.Value)
			if err != nil {
				WriteError(w, err)
				return
			}
			if s == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(authgate.WithSession(r.Context(), s)))
		})
	}
}

// RequireSession rejects requests without a hydrated session with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authgate.SessionFromContext(r.Context()); !ok {
			WriteError(w, authgate.ErrSessionRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
