package api

import "net/http"

const headerUserID = "X-User-Id"

// authMiddleware extracts the user id from the X-User-Id header and
// adds it to the request context. This is deliberately not a security
// boundary — cryptographic authentication of edits is a non-goal —
// it is the minimum plumbing needed to attribute operations to a
// userId, which the convergence engine's tie-break rule depends on.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			http.Error(w, "missing X-User-Id header", http.StatusUnauthorized)

			return
		}

		ctx := withUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
