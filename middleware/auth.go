package middleware

import (
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/authgate"
)

type authOptions struct {
	optional bool
}

// AuthOption configures [Authenticate].
type AuthOption func(*authOptions)

// Optional lets requests without a credential through unauthenticated. A
// credential that is present but invalid is still rejected.
func Optional() AuthOption {
	return func(o *authOptions) {
		o.optional = true
	}
}

// Authenticate runs the engine's authentication pipeline on the
// Authorization header and attaches the resulting identity to the request
// context.
func Authenticate(engine *authgate.Engine, opts ...AuthOption) func(http.Handler) http.Handler {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authgate.ErrEngineNotReady)
				return
			}

			id, err := engine.AuthenticateHeader(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if o.optional && errors.Is(err, authgate.ErrUnauthenticated) {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authgate.WithIdentity(r.Context(), id)))
		})
	}
}

// ClientIP attaches the peer address of the request for login throttling
// and audit records. Forwarding headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(authgate.WithClientIP(r.Context(), host)))
	})
}
