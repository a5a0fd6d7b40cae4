package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/metrics/export/internaldefs"
	"github.com/MrEthical07/authgate/middleware"
)

// PermissionRevokeSessions guards the admin endpoint that ends every session
// of a user.
const PermissionRevokeSessions = "sessions:revoke"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
}

type identityResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	Plan          string `json:"plan,omitempty"`
}

func newRouter(engine *authgate.Engine, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Authenticate(engine)
	optional := middleware.Authenticate(engine, middleware.Optional())

	mux.Handle("POST /login", middleware.ClientIP(loginHandler(engine)))
	mux.Handle("POST /logout", logoutHandler(engine))
	mux.Handle("GET /whoami", optional(http.HandlerFunc(whoami)))
	mux.Handle("GET /session", middleware.Session(engine)(middleware.RequireSession(http.HandlerFunc(currentSession))))
	mux.Handle("GET /admin/stats", authed(middleware.RequireRole(authgate.RoleAdmin)(statsHandler(engine))))
	mux.Handle("DELETE /admin/users/{id}/sessions",
		authed(middleware.RequirePermission(engine, PermissionRevokeSessions)(endSessionsHandler(engine))))
	mux.Handle("GET /healthz", healthHandler(engine))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

func loginHandler(engine *authgate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		res, err := engine.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     engine.SessionCookieName(),
			Value:    res.Session.SessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, loginResponse{
			Token:     res.Credential.Token,
			ExpiresAt: res.Credential.ExpiresAt.UTC(),
			SessionID: res.Session.SessionID,
			UserID:    res.Identity.UserID,
			Role:      res.Identity.Role,
		})
	}
}

func logoutHandler(engine *authgate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential, _ := authgate.ParseBearer(r.Header.Get("Authorization"))
		var sessionID string
		if c, err := r.Cookie(engine.SessionCookieName()); err == nil {
			sessionID = c.Value
		}

		// A garbage bearer value is ignored; a store failure on either half is not.
		if err := logoutFailure(engine.Logout(r.Context(), credential, sessionID)); err != nil {
			middleware.WriteError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     engine.SessionCookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// logoutFailure returns the first part of a Logout error that is not a
// malformed credential.
func logoutFailure(err error) error {
	if err == nil {
		return nil
	}
	parts := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts = joined.Unwrap()
	}
	for _, part := range parts {
		if !errors.Is(part, authgate.ErrMalformed) {
			return part
		}
	}
	return nil
}

func whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := authgate.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, identityResponse{})
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		Authenticated: true,
		UserID:        id.UserID,
		Email:         id.Email,
		Role:          id.Role,
		Plan:          id.Plan,
	})
}

func currentSession(w http.ResponseWriter, r *http.Request) {
	s, _ := authgate.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":      s.SessionID,
		"userId":         s.UserID,
		"createdAt":      s.CreatedAt.UTC(),
		"lastActivityAt": s.LastActivityAt.UTC(),
	})
}

func statsHandler(engine *authgate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := engine.MetricsSnapshot()
		counters := make(map[string]uint64, len(internaldefs.CounterDefs))
		for _, def := range internaldefs.CounterDefs {
			counters[def.Name] = snap.Counters[def.ID]
		}
		body := map[string]any{
			"policy":       engine.PolicyName(),
			"counters":     counters,
			"auditDropped": engine.AuditDropped(),
		}
		if h, ok := snap.Histograms[authgate.MetricAuthLatency]; ok {
			var mean float64
			if n := h.Count(); n > 0 {
				mean = h.Sum.Seconds() / float64(n)
			}
			body["authLatency"] = map[string]any{"count": h.Count(), "meanSeconds": mean}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func endSessionsHandler(engine *authgate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := engine.EndAllSessions(r.Context(), r.PathValue("id"))
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"ended": n})
	}
}

func healthHandler(engine *authgate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Ping(r.Context()); err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
