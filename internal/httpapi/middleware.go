package httpapi

import (
	"context"
	"net/http"

	"github.com/dquispe/tienda/internal/domain"
)

type ctxKey int

const actorKey ctxKey = iota

// SessionMiddleware resolves the session's actor. Authentication itself is
// an external collaborator; the gateway in front of this service is expected
// to validate the session token and forward identity headers, so here we
// only read them. Requests without identity are anonymous customers.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   r.Header.Get("X-User-ID"),
			Role: domain.RoleCustomer,
		}
		if r.Header.Get("X-User-Role") == string(domain.RoleAdmin) {
			actor.Role = domain.RoleAdmin
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests without a user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFromContext(r.Context()).ID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin sessions.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFromContext(r.Context()).Role != domain.RoleAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{Role: domain.RoleCustomer}
}
