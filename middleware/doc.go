// Package middleware adapts an [authgate.Engine] to net/http.
//
// Compose [Authenticate] or [Session] first, then the guards:
//
//	mux.Handle("/admin", middleware.Authenticate(engine)(
//		middleware.RequireRole(authgate.RoleAdmin)(adminHandler)))
//
// Rejections are written as JSON with a generic message, a machine code and
// the HTTP status.
package middleware
