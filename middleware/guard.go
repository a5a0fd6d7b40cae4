package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authgate"
)

// RequireRole rejects requests whose attached identity does not hold
// exactly role. It must run after [Authenticate].
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := authgate.IdentityFromContext(r.Context())
			if err := authgate.RequireRole(id, role); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests the engine's permission policy denies.
// It must run after [Authenticate].
func RequirePermission(engine *authgate.Engine, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := authgate.IdentityFromContext(r.Context())
			if err := engine.RequirePermission(r.Context(), id, permission); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

// WriteError writes the JSON rejection for err. The body carries only the
// generic message of the error's kind.
func WriteError(w http.ResponseWriter, err error) {
	kind := authgate.KindOf(err)
	status := kind.HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="authgate"`)
	case http.StatusTooManyRequests:
		if d, ok := authgate.RetryAfter(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:      kind.Message(),
		Code:       kind.Code(),
		StatusCode: status,
	})
}
